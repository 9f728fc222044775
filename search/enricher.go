package search

import (
	"context"
	"fmt"

	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// Window is how many units to fetch on each side of a match.
type Window struct {
	Before int
	After  int
}

// DefaultWindow is used by the Searcher unless WithWindow is given.
var DefaultWindow = Window{Before: 2, After: 2}

// Context is a matched unit with its neighbors and parent display data.
type Context struct {
	Unit     *core.Unit
	Previous []*core.Unit
	Next     []*core.Unit
	Source   *core.Source
}

// Enricher fetches the neighborhood of a matched unit.
type Enricher struct {
	units   storage.UnitRepository
	sources storage.SourceRepository
	window  Window
}

// NewEnricher creates an Enricher. Negative window sizes are treated as 0.
func NewEnricher(units storage.UnitRepository, sources storage.SourceRepository, window Window) (*Enricher, error) {
	if units == nil || sources == nil {
		return nil, ErrStoreRequired
	}
	return &Enricher{
		units:   units,
		sources: sources,
		window:  Window{Before: max(window.Before, 0), After: max(window.After, 0)},
	}, nil
}

// Window returns the configured window.
func (e *Enricher) Window() Window {
	return e.window
}

// Enrich returns the unit at position in sourceID together with up to
// Before preceding and After following units, both in ascending order.
func (e *Enricher) Enrich(ctx context.Context, sourceID string, position int) (*Context, error) {
	src, err := e.sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	matched, err := e.units.GetUnitsInRange(ctx, sourceID, position, position)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, &core.NotFoundError{Kind: "unit", ID: fmt.Sprintf("%s@%d", sourceID, position)}
	}

	prevFrom, prevTo := NeighborRange(position, e.window.Before, true)
	previous, err := e.rangeOrEmpty(ctx, sourceID, prevFrom, prevTo)
	if err != nil {
		return nil, err
	}
	nextFrom, nextTo := NeighborRange(position, e.window.After, false)
	next, err := e.rangeOrEmpty(ctx, sourceID, nextFrom, nextTo)
	if err != nil {
		return nil, err
	}

	return &Context{
		Unit:     matched[0],
		Previous: previous,
		Next:     next,
		Source:   src,
	}, nil
}

func (e *Enricher) rangeOrEmpty(ctx context.Context, sourceID string, from, to int) ([]*core.Unit, error) {
	if to < from {
		return []*core.Unit{}, nil
	}
	return e.units.GetUnitsInRange(ctx, sourceID, from, to)
}

// NeighborRange returns the inclusive position range of n units before
// (or after) position. The lower bound is clamped at 0; an empty range has
// to < from.
func NeighborRange(position, n int, before bool) (from, to int) {
	if before {
		return max(0, position-n), position - 1
	}
	return position + 1, position + n
}
