// Package SplitMap implements a lock-free, resizable hash map keyed by
// machine-word unsigned integers, using the split-ordered lists technique
// of Shalev & Shavit: a single sorted lock-free list (list.go) threaded
// with sentinel nodes that a lazily-materialized access trie (access.go)
// maps bucket indices onto.
package SplitMap

import "golang.org/x/exp/constraints"

// tag distinguishes a bucket sentinel from a user-carrying node in the
// shared sorted list. Sentinel sorts before Regular at equal reversed key.
type tag uint8

const (
	tagSentinel tag = iota
	tagRegular
)

// sortKey is the value nodes in the shared list are ordered by. Both
// sentinels and regular nodes are primarily ordered by h under
// bit-reversed (LSB-first) comparison, so that any power-of-two modulus
// of h groups its members into a contiguous run (§4.3): h is the bucket
// index for a sentinel, and the hash of the user key for a regular node
// — never the raw user key, since routing (getBucket) is also done off
// the hash and the two must agree for a node to stay reachable across a
// resize (§5). k carries the real user key, and only matters as a
// tie-break between distinct keys that happen to share a hash: without
// it, a hash collision would make splitCompare treat two different keys
// as the same list position.
type sortKey[K constraints.Unsigned] struct {
	h   K
	k   K
	tag tag
}

func sentinelKey[K constraints.Unsigned](bucket K) sortKey[K] {
	return sortKey[K]{h: bucket, tag: tagSentinel}
}

func regularKey[K constraints.Unsigned](h, k K) sortKey[K] {
	return sortKey[K]{h: h, k: k, tag: tagRegular}
}

// bitReverseCompare orders two integers by their bits, least-significant
// first: this is split order. cmp(2,8) is not the same as comparing 2 and
// 8 numerically; only the trailing-bit divergence matters.
func bitReverseCompare[K constraints.Unsigned](a, b K) int {
	for a != 0 || b != 0 {
		abit, bbit := a&1, b&1
		if abit < bbit {
			return -1
		}
		if abit > bbit {
			return 1
		}
		a >>= 1
		b >>= 1
	}
	return 0
}

// splitCompare is the total order used by the shared list (§4.3). It is
// the only comparator ever passed to the list: every operation must use
// it consistently for invariant 5 to hold.
func splitCompare[K constraints.Unsigned](a, b sortKey[K]) int {
	if c := bitReverseCompare(a.h, b.h); c != 0 {
		return c
	}
	if a.tag < b.tag {
		return -1
	}
	if a.tag > b.tag {
		return 1
	}
	if a.tag == tagRegular {
		if a.k < b.k {
			return -1
		}
		if a.k > b.k {
			return 1
		}
	}
	return 0
}

// clearTopBit returns hk with its highest set bit cleared: the parent
// bucket index one level up the access trie (§4.4).
func clearTopBit[K constraints.Unsigned](hk K) K {
	if hk == 0 {
		return 0
	}
	top := K(1)
	for next := top << 1; next != 0 && next <= hk; next <<= 1 {
		top = next
	}
	return hk &^ top
}
