package extraction

import (
	"fmt"

	"github.com/poiesic/recollect/core"
)

// Request names the entity to extract artifacts from.
type Request struct {
	SourceType core.SourceType
	SourceID   string
	// Overwrite replaces existing artifacts instead of returning them.
	Overwrite bool
}

// Key returns the artifact group the request targets.
func (r Request) Key() core.ArtifactKey {
	return core.ArtifactKey{SourceType: r.SourceType, SourceID: r.SourceID}
}

// Outcome is the result of one successful Extract call.
type Outcome struct {
	Key       core.ArtifactKey
	Artifacts []*core.Artifact
	// Skipped is set when existing artifacts were returned unchanged.
	Skipped bool
	// Replaced counts artifacts removed by an overwrite.
	Replaced int
}

// Result pairs a request with its outcome or error.
type Result struct {
	Request Request
	Outcome *Outcome
	Err     error
}

// BatchReport collects the results of ExtractAll in request order.
type BatchReport struct {
	Results []Result

	Extracted int
	Skipped   int
	Failed    int
	Artifacts int
}

func newBatchReport(results []Result) *BatchReport {
	r := &BatchReport{Results: results}
	for _, res := range results {
		switch {
		case res.Err != nil:
			r.Failed++
		case res.Outcome.Skipped:
			r.Skipped++
		default:
			r.Extracted++
			r.Artifacts += len(res.Outcome.Artifacts)
		}
	}
	return r
}

// Failures returns the failed results in request order.
func (r *BatchReport) Failures() []Result {
	failures := []Result{}
	for _, res := range r.Results {
		if res.Err != nil {
			failures = append(failures, res)
		}
	}
	return failures
}

func (r *BatchReport) String() string {
	return fmt.Sprintf("requests: %d extracted, %d skipped, %d failed; artifacts: %d stored",
		r.Extracted, r.Skipped, r.Failed, r.Artifacts)
}
