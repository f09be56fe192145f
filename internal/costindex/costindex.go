// Package costindex buckets ready-to-run tests by cost so the scheduler
// can walk them highest-cost-first, aborting a dispatch pass as soon as
// the remaining processor budget can't fit the next candidate. It mirrors
// the original scheduler's TestCostMap (a std::map<float, std::set<int>>)
// rather than a binary heap: a heap only exposes one global maximum at a
// time, while dispatch walks each cost tier as a whole group.
package costindex

import (
	"sort"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// Index buckets test ids by cost, with fast membership removal.
type Index struct {
	buckets map[float64]map[testmodel.ID]struct{}
}

// New creates an empty cost index.
func New() *Index {
	return &Index{buckets: make(map[float64]map[testmodel.ID]struct{})}
}

// Insert adds id under its cost bucket.
func (idx *Index) Insert(id testmodel.ID, cost float64) {
	b, ok := idx.buckets[cost]
	if !ok {
		b = make(map[testmodel.ID]struct{})
		idx.buckets[cost] = b
	}
	b[id] = struct{}{}
}

// Remove deletes id from its cost bucket, dropping the bucket entirely
// once it's empty.
func (idx *Index) Remove(id testmodel.ID, cost float64) {
	b, ok := idx.buckets[cost]
	if !ok {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(idx.buckets, cost)
	}
}

// Len returns the total number of tests indexed across all buckets.
func (idx *Index) Len() int {
	n := 0
	for _, b := range idx.buckets {
		n += len(b)
	}
	return n
}

// DescendingCosts returns the distinct cost keys in descending order,
// matching a reverse iteration of std::map<float, std::set<int>>.
func (idx *Index) DescendingCosts() []float64 {
	costs := make([]float64, 0, len(idx.buckets))
	for c := range idx.buckets {
		costs = append(costs, c)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(costs)))
	return costs
}

// Bucket returns a snapshot copy of the ids at the given cost. Callers
// iterating a bucket while dispatching should take this snapshot first,
// since a successful dispatch will Remove from the live bucket.
func (idx *Index) Bucket(cost float64) []testmodel.ID {
	b := idx.buckets[cost]
	ids := make([]testmodel.ID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	return ids
}
