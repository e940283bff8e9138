package op

import (
	"slices"

	"github.com/google/btree"
	"github.com/nickyhof/MiniDB/core"
)

const btreeDegree = 16

// Index maps the values of one constrained column to the rows holding them.
// Point lookups go through a hash map; the distinct values are also kept in
// a B-tree so ordered comparisons can be answered without a scan. Indexes are
// rebuilt from rows on load and never persisted.
type Index struct {
	Table  string
	Column string

	entries map[core.Value]map[core.RowID]struct{}
	ordered *btree.BTreeG[core.Value]
}

func NewIndex(table, column string) *Index {
	return &Index{
		Table:   table,
		Column:  column,
		entries: make(map[core.Value]map[core.RowID]struct{}),
		ordered: btree.NewG[core.Value](btreeDegree, core.Less),
	}
}

// Lookup returns the rows holding value, in ascending id order.
func (idx *Index) Lookup(value core.Value) []core.RowID {
	return sortedIDs(idx.entries[value])
}

// WouldViolate reports whether value is already held by a live row.
func (idx *Index) WouldViolate(value core.Value) bool {
	return len(idx.entries[value]) > 0
}

func (idx *Index) Insert(value core.Value, id core.RowID) {
	ids, ok := idx.entries[value]
	if !ok {
		ids = make(map[core.RowID]struct{}, 1)
		idx.entries[value] = ids
		idx.ordered.ReplaceOrInsert(value)
	}
	ids[id] = struct{}{}
}

func (idx *Index) Remove(value core.Value, id core.RowID) {
	ids, ok := idx.entries[value]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(idx.entries, value)
		idx.ordered.Delete(value)
	}
}

// Range returns the rows whose value satisfies `value op pivot`, in ascending
// id order.
func (idx *Index) Range(op core.Operator, pivot core.Value) []core.RowID {
	if op == core.EqualsOperator {
		return idx.Lookup(pivot)
	}

	var ids []core.RowID
	collect := func(value core.Value) bool {
		for id := range idx.entries[value] {
			ids = append(ids, id)
		}
		return true
	}

	switch op {
	case core.LessThanOperator:
		idx.ordered.AscendLessThan(pivot, collect)
	case core.LessThanOrEqualOperator:
		idx.ordered.AscendLessThan(pivot, collect)
		collect(pivot)
	case core.GreaterThanOperator:
		idx.ordered.AscendGreaterOrEqual(pivot, func(value core.Value) bool {
			if value == pivot {
				return true
			}
			return collect(value)
		})
	case core.GreaterThanOrEqualOperator:
		idx.ordered.AscendGreaterOrEqual(pivot, collect)
	case core.NotEqualsOperator:
		idx.ordered.Ascend(func(value core.Value) bool {
			if value == pivot {
				return true
			}
			return collect(value)
		})
	}

	slices.Sort(ids)
	return ids
}

// Len is the number of indexed (value, row) pairs.
func (idx *Index) Len() int {
	n := 0
	for _, ids := range idx.entries {
		n += len(ids)
	}
	return n
}

// Distinct is the number of distinct indexed values.
func (idx *Index) Distinct() int {
	return idx.ordered.Len()
}

func sortedIDs(set map[core.RowID]struct{}) []core.RowID {
	ids := make([]core.RowID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
