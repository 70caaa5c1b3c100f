package SplitMap

import (
	"fmt"
	"strings"
	"sync/atomic"

	Go_Utils "github.com/g-m-twostay/splitmap"
	"github.com/google/btree"
	"golang.org/x/exp/constraints"
)

// Map is the façade (C5): create/find/mem/add/remove/elements built on
// the shared sorted list (C2) and the access trie (C3), with growth
// driven by the resize protocol (C4). None of its operations block or
// fail; every one makes progress under lock-freedom (§7).
type Map[K constraints.Unsigned, V any] struct {
	hash  func(K) uint
	store *list[K, V]

	access     atomic.Pointer[level[K, V]]
	size       Go_Utils.AtomicUint // logical modulus, power of two
	content    Go_Utils.AtomicUint // approximate live-node count
	accessSize Go_Utils.AtomicUint // trie capacity = nbBucket^depth
	resize     Go_Utils.AtomicUint // 0 = None, else target+1

	nbBucket uint
	load     uint
}

// New builds an empty Map. nbBucket is the access trie's fan-out (§6.1,
// power of two recommended) and load is the target average bucket depth
// before a resize is triggered. Misconfiguration panics, matching the
// teacher's own habit of panicking on programmer error rather than
// threading a config-validation error through every constructor.
func New[K constraints.Unsigned, V any](nbBucket, load uint, hash func(K) uint) *Map[K, V] {
	if nbBucket < 2 {
		panic("SplitMap: nbBucket must be at least 2")
	}
	if load < 1 {
		panic("SplitMap: load must be at least 1")
	}

	m := &Map[K, V]{hash: hash, store: newList[K, V](), nbBucket: nbBucket, load: load}

	_, h0 := m.store.sinsert(nil, sentinelKey[K](0), *new(V))
	_, h1 := m.store.sinsert(h0, sentinelKey[K](1), *new(V))

	root := newLevel[K, V](nbBucket)
	root[0].v.Store(&cellValue[K, V]{sentinel: h0})
	root[1].v.Store(&cellValue[K, V]{sentinel: h1})
	m.access.Store(&root)

	m.size.Store(2)
	m.accessSize.Store(nbBucket)
	return m
}

// NewDefault builds a Map using the module's own runtime-hash-backed
// Hasher (Hasher.go) as the hash function, for callers who don't need a
// tuned one.
func NewDefault[K constraints.Unsigned, V any](nbBucket, load uint) *Map[K, V] {
	h := Go_Utils.NewHasher()
	return New[K, V](nbBucket, load, func(k K) uint { return h.HashInt(int(k)) })
}

// hashOf returns H(k), the module-word hash used both to route k to a
// bucket (bucketFor) and to sort k's node in the shared list
// (regularKey). Both uses must derive from the same value: routing a
// node by hash but sorting it by raw key would let a resize's finer
// bucket split leave a live node unreachable from its new sentinel
// (§5's "changing which sentinel a thread walks from never changes
// whether a key is found" guarantee depends on this).
func (m *Map[K, V]) hashOf(k K) K {
	return K(m.hash(k))
}

func (m *Map[K, V]) bucketFor(h K) uint {
	return uint(h) % m.size.Load()
}

// Find returns the value stored under k, if any (§4.6).
func (m *Map[K, V]) Find(k K) (V, bool) {
	m.checkSize()
	hk := m.hashOf(k)
	h := m.getBucket(m.bucketFor(hk))
	return m.store.find(h, regularKey(hk, k))
}

// Mem reports whether k is present.
func (m *Map[K, V]) Mem(k K) bool {
	m.checkSize()
	hk := m.hashOf(k)
	h := m.getBucket(m.bucketFor(hk))
	return m.store.mem(h, regularKey(hk, k))
}

// Add inserts k/v if k is not already present. An existing key's value is
// never overwritten (§9 open question 1): add reports only whether the
// key was newly inserted, and keeps the old value otherwise.
func (m *Map[K, V]) Add(k K, v V) {
	m.checkSize()
	hk := m.hashOf(k)
	h := m.getBucket(m.bucketFor(hk))
	isNew, _ := m.store.sinsert(h, regularKey(hk, k), v)
	if isNew {
		m.content.Add(1)
	}
}

// Remove deletes k, reporting whether it was present.
func (m *Map[K, V]) Remove(k K) bool {
	m.checkSize()
	hk := m.hashOf(k)
	h := m.getBucket(m.bucketFor(hk))
	ok := m.store.sdelete(h, regularKey(hk, k))
	if ok {
		m.content.Add(^uint(0)) // -1, two's-complement wraparound decrement
	}
	return ok
}

// Elements returns a best-effort, non-atomic snapshot of every value
// currently in the map (§4.2, §4.6): not a consistent point-in-time view.
func (m *Map[K, V]) Elements() []V {
	out := make([]V, 0, m.content.Load())
	m.store.elements(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// ForEach streams every live key/value pair, stopping early if f returns
// false. Like Elements, this is best-effort and not a consistent snapshot.
func (m *Map[K, V]) ForEach(f func(K, V) bool) {
	m.store.elements(f)
}

// Len returns the approximate element count (§5): eventually consistent
// with the list population, not linearizable with concurrent Add/Remove.
func (m *Map[K, V]) Len() uint {
	return m.content.Load()
}

// Cap returns the access trie's current capacity (access_size).
func (m *Map[K, V]) Cap() uint {
	return m.accessSize.Load()
}

// Stats is a debug-only snapshot of the map's internal counters.
type Stats struct {
	Buckets    uint
	AccessSize uint
	Len        uint
}

func (m *Map[K, V]) statsSnapshot() Stats {
	return Stats{Buckets: m.size.Load(), AccessSize: m.accessSize.Load(), Len: m.content.Load()}
}

// ToString renders a debug dump of the map, sorted by key for
// readability. It is not part of the concurrent contract (§6.2): building
// the sorted view costs an O(N log N) pass over an Elements-style
// traversal.
func (m *Map[K, V]) ToString(render func(V) string) string {
	type entryKV struct {
		k K
		v V
	}
	ordered := btree.NewG(32, func(a, b entryKV) bool { return a.k < b.k })
	m.ForEach(func(k K, v V) bool {
		ordered.ReplaceOrInsert(entryKV{k, v})
		return true
	})

	st := m.statsSnapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "SplitMap{buckets=%d access_size=%d len=%d}\n", st.Buckets, st.AccessSize, st.Len)
	ordered.Ascend(func(item entryKV) bool {
		fmt.Fprintf(&sb, "  %v: %s\n", item.k, render(item.v))
		return true
	})
	return sb.String()
}
