package SplitMap

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// entry is a node of the shared sorted list (C2). Nodes are immutable
// except for next: a "delete" never mutates an existing entry, it appends
// a fresh tombstone entry carrying the same key immediately after the
// live version, the way tef-sink's list keeps next pointers frozen once
// an entry has been superseded. Sentinels (tag == tagSentinel) are never
// tombstoned (invariant 4): they live for the lifetime of the map.
type entry[K constraints.Unsigned, V any] struct {
	key     sortKey[K]
	val     V
	deleted bool
	next    atomic.Pointer[entry[K, V]]
}

// Handle is a non-owning reference into the shared list, most often a
// sentinel installed by the access trie (§4.4). sinsert/sdelete/find/mem
// accept a Handle as a search-start hint so a lookup only walks the
// segment belonging to one bucket instead of the whole list.
type Handle[K constraints.Unsigned, V any] = *entry[K, V]

// list is the concrete C2 collaborator: a singly-linked list of entries
// sorted by splitCompare, with lock-free sinsert/sdelete/find/mem.
type list[K constraints.Unsigned, V any] struct {
	head entry[K, V] // dummy anchor, never matched against a search key
}

func newList[K constraints.Unsigned, V any]() *list[K, V] {
	return &list[K, V]{}
}

// walkResult captures one scan of the list for a target key x, starting
// at some handle: the last node strictly before x's group, the first and
// last node whose key equals x (both nil if the group is empty), and the
// first node strictly after the group.
type walkResult[K constraints.Unsigned, V any] struct {
	before, start, last, after *entry[K, V]
}

func (l *list[K, V]) walk(from Handle[K, V], x sortKey[K]) walkResult[K, V] {
	if from == nil {
		from = &l.head
	}
	before := from
	var start, last *entry[K, V]
	cur := before.next.Load()
	for cur != nil {
		switch c := splitCompare(cur.key, x); {
		case c > 0:
			return walkResult[K, V]{before, start, last, cur}
		case c == 0:
			if start == nil {
				start = cur
			}
			last = cur
		default:
			before = cur
			start, last = nil, nil
		}
		cur = cur.next.Load()
	}
	return walkResult[K, V]{before, start, last, nil}
}

// sinsert inserts x with payload val if no live node with the same key
// exists; otherwise it leaves the list untouched and returns the existing
// node. Lock-free: failed CAS attempts retry the whole scan with backoff.
func (l *list[K, V]) sinsert(from Handle[K, V], x sortKey[K], val V) (isNew bool, h Handle[K, V]) {
	var bo Backoff
	for {
		w := l.walk(from, x)
		if w.last != nil && !w.last.deleted {
			return false, w.last
		}
		anchor := w.last
		if anchor == nil {
			anchor = w.before
		}
		fresh := &entry[K, V]{key: x, val: val}
		fresh.next.Store(w.after)
		if anchor.next.CompareAndSwap(w.after, fresh) {
			if w.start != nil && w.start != w.last {
				// best-effort: collapse the now-dead start..last run we
				// just appended past, since nothing can reach it anymore
				// except through this exact pointer.
				w.before.next.CompareAndSwap(w.start, fresh)
			}
			return true, fresh
		}
		bo.once()
	}
}

// sdelete logically deletes the live node matching x, if any, by
// appending a tombstone entry after it. Returns whether a live node was
// found and marked.
func (l *list[K, V]) sdelete(from Handle[K, V], x sortKey[K]) bool {
	var bo Backoff
	for {
		w := l.walk(from, x)
		if w.last == nil || w.last.deleted {
			return false
		}
		tomb := &entry[K, V]{key: x, deleted: true}
		tomb.next.Store(w.after)
		if w.last.next.CompareAndSwap(w.after, tomb) {
			return true
		}
		bo.once()
	}
}

// find returns the payload of the live node matching x, if any.
func (l *list[K, V]) find(from Handle[K, V], x sortKey[K]) (val V, ok bool) {
	w := l.walk(from, x)
	if w.last == nil || w.last.deleted {
		return val, false
	}
	return w.last.val, true
}

// mem reports whether a live node matching x exists.
func (l *list[K, V]) mem(from Handle[K, V], x sortKey[K]) bool {
	w := l.walk(from, x)
	return w.last != nil && !w.last.deleted
}

// elements is a best-effort traversal of the whole list, in list (split)
// order, skipping sentinels, tombstones, and live versions already
// superseded by a later entry of the same key. It is not a consistent
// snapshot: concurrent mutations may or may not be reflected.
func (l *list[K, V]) elements(yield func(K, V) bool) {
	for cur := l.head.next.Load(); cur != nil; {
		next := cur.next.Load()
		superseded := next != nil && splitCompare(next.key, cur.key) == 0
		if cur.key.tag == tagRegular && !cur.deleted && !superseded {
			if !yield(cur.key.k, cur.val) {
				return
			}
		}
		cur = next
	}
}
