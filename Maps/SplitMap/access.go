package SplitMap

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// cellValue is the immutable payload of an AccessCell once it has left
// the Uninitialized state (§3.2). Exactly one of children/sentinel is
// set: children for Allocated, sentinel for Initialized. A cell never
// holds both and never reverts once installed (invariant 7).
type cellValue[K constraints.Unsigned, V any] struct {
	children []accessCell[K, V]
	sentinel Handle[K, V]
}

// accessCell is one atomic slot of the access trie (C3). The zero value
// is Uninitialized: nothing has been stored in v yet. A single CAS on v
// performs the Uninitialized -> Allocated or Uninitialized -> Initialized
// transition; a lost CAS is discarded and the winner's value is read back
// (§4.4), which is why the transition is expressed as one pointer swap
// rather than a multi-field update.
type accessCell[K constraints.Unsigned, V any] struct {
	v atomic.Pointer[cellValue[K, V]]
}

// level is the trie's top array, replaced wholesale by the resize
// protocol (C4) when the trie needs another level of depth.
type level[K constraints.Unsigned, V any] = []accessCell[K, V]

func newLevel[K constraints.Unsigned, V any](nbBucket uint) level[K, V] {
	return make(level[K, V], nbBucket)
}

// getBucket resolves a bucket index to its sentinel handle, materializing
// any Uninitialized cells it passes through along the way (§4.4).
//
// The depth used to seed levelCap is derived from the root snapshot
// itself (sizeOfAccess), not from the independently-atomic accessSize
// counter: helpResize installs a deeper root before it raises
// accessSize (resize.go), so a root loaded after that first CAS but
// read alongside the not-yet-updated accessSize would otherwise compute
// a levelCap one level too shallow and divide by zero descending past
// the leaf. Deriving depth from the same root pointer this call already
// committed to keeps the two consistent by construction.
func (m *Map[K, V]) getBucket(hk uint) Handle[K, V] {
	root := m.access.Load()
	cells := *root
	levelCap := m.sizeOfAccess(cells) / m.nbBucket
	// rest is the per-level descent remainder used only for slot
	// addressing; hk itself is never reassigned, since initCell needs
	// the full, original bucket index (for sentinelKey/clearTopBit) at
	// whichever level turns out to be the leaf, not just its low-order
	// digit left over after stripping off the levels walked so far.
	rest := hk
	for {
		slot := rest / levelCap
		rest = rest % levelCap
		cell := &cells[slot]
		cv := cell.v.Load()
		if cv == nil {
			cv = m.initCell(cell, hk, levelCap)
		}
		if cv.sentinel != nil {
			return cv.sentinel
		}
		cells = cv.children
		levelCap /= m.nbBucket
	}
}

// initCell performs the Uninitialized cell's one-shot transition. At an
// interior level it allocates a fresh Uninitialized child array; at the
// leaf level it materializes the bucket's sentinel by splitting off from
// the parent bucket's segment of the shared list — no data ever moves,
// only a sentinel gets inserted (§4.4 rationale).
func (m *Map[K, V]) initCell(cell *accessCell[K, V], hk, levelCap uint) *cellValue[K, V] {
	var fresh *cellValue[K, V]
	if levelCap > 1 {
		fresh = &cellValue[K, V]{children: newLevel[K, V](m.nbBucket)}
	} else {
		parentHandle := m.getBucket(clearTopBit(hk))
		_, h := m.store.sinsert(parentHandle, sentinelKey[K](K(hk)), *new(V))
		fresh = &cellValue[K, V]{sentinel: h}
	}
	cell.v.CompareAndSwap(nil, fresh)
	return cell.v.Load()
}

// sizeOfAccess walks slot 0 of root, multiplying by nbBucket for every
// Allocated level, and stops at the first non-Allocated cell (§4.5). This
// yields the trie's current physical depth so a late resize helper never
// regresses an already-installed deeper trie.
func (m *Map[K, V]) sizeOfAccess(root level[K, V]) uint {
	size := m.nbBucket
	cells := root
	for {
		cv := cells[0].v.Load()
		if cv == nil || cv.children == nil {
			return size
		}
		size *= m.nbBucket
		cells = cv.children
	}
}
