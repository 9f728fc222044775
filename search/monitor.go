package search

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimensions int)
	AfterIndexSearch(matches []Match)
	AfterEnrichment(hit *Hit)
	VerbatimHit(hit *Hit)
	Finish(hits []*Hit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)             {}
func (n *noopMonitor) AfterEmbedding(_ int)       {}
func (n *noopMonitor) AfterIndexSearch(_ []Match) {}
func (n *noopMonitor) AfterEnrichment(_ *Hit)     {}
func (n *noopMonitor) VerbatimHit(_ *Hit)         {}
func (n *noopMonitor) Finish(_ []*Hit)            {}
