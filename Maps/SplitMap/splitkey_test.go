package SplitMap

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/petar/GoLLRB/llrb"
)

// splitItem adapts a sortKey to llrb.Item so GoLLRB can act as an
// independent ordering oracle for splitCompare: if GoLLRB's own
// red-black comparisons agree with an in-order walk sorted by
// splitCompare, the comparator is a valid total order (irreflexive,
// antisymmetric, transitive).
type splitItem struct {
	k sortKey[uint]
}

func (a splitItem) Less(than llrb.Item) bool {
	return splitCompare(a.k, than.(splitItem).k) < 0
}

func TestSplitCompareIsTotalOrder(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	tree := llrb.New()
	var keys []sortKey[uint]
	seen := map[sortKey[uint]]bool{}
	for len(keys) < 500 {
		// Sentinels carry no user key (sentinelKey leaves k zero), and only
		// distinct keys are kept: the tree holds one item per equal key.
		k := sortKey[uint]{h: uint(r.Uint32() % 4096), tag: tag(r.Intn(2))}
		if k.tag == tagRegular {
			k.k = uint(r.Uint32() % 4096)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		tree.ReplaceOrInsert(splitItem{k})
	}

	var fromTree []sortKey[uint]
	tree.AscendGreaterOrEqual(tree.Min(), func(i llrb.Item) bool {
		fromTree = append(fromTree, i.(splitItem).k)
		return true
	})

	sortedKeys := append([]sortKey[uint]{}, keys...)
	sort.Slice(sortedKeys, func(i, j int) bool {
		return splitCompare(sortedKeys[i], sortedKeys[j]) < 0
	})

	if len(fromTree) != len(sortedKeys) {
		t.Fatalf("GoLLRB walk length %d != sort.Slice length %d (dedup mismatch)", len(fromTree), len(sortedKeys))
	}
	for i := range fromTree {
		if splitCompare(fromTree[i], sortedKeys[i]) != 0 {
			t.Fatalf("index %d: GoLLRB order disagrees with splitCompare order", i)
		}
	}
}

// TestSplitOrderContiguousRange is property 7 / invariant 5: for any
// power-of-two size, every key k with k%size == b appears contiguously
// (as a run) in split order among all keys sharing that size class.
func TestSplitOrderContiguousRange(t *testing.T) {
	const size = uint(16)
	r := rand.New(rand.NewSource(2))
	var keys []uint
	for i := 0; i < 2000; i++ {
		keys = append(keys, uint(r.Uint32())%(size*64))
	}

	sort.Slice(keys, func(i, j int) bool {
		return bitReverseCompare(keys[i], keys[j]) < 0
	})

	bucketOfRun := make(map[int]uint)
	runStart := -1
	for i, k := range keys {
		b := k % size
		lowBits := k & (size - 1)
		_ = lowBits
		if runStart == -1 {
			runStart = i
			bucketOfRun[runStart] = b
			continue
		}
		if b != bucketOfRun[runStart] {
			runStart = i
			bucketOfRun[runStart] = b
		}
	}

	// group by bucket and check each bucket's members form one run: no
	// bucket value reappears once the run for it has ended.
	seenBucket := map[uint]bool{}
	lastBucket := keys[0] % size
	seenBucket[lastBucket] = true
	for _, k := range keys[1:] {
		b := k % size
		if b == lastBucket {
			continue
		}
		if seenBucket[b] {
			t.Fatalf("bucket %d reappears non-contiguously in split order", b)
		}
		seenBucket[b] = true
		lastBucket = b
	}
}

func TestBitReverseCompareAntisymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		a, b := uint(r.Uint32()), uint(r.Uint32())
		if bitReverseCompare(a, b) != -bitReverseCompare(b, a) {
			t.Fatalf("bitReverseCompare(%d,%d) = %d, bitReverseCompare(%d,%d) = %d, expected negation",
				a, b, bitReverseCompare(a, b), b, a, bitReverseCompare(b, a))
		}
	}
}

func TestClearTopBit(t *testing.T) {
	cases := map[uint]uint{0: 0, 1: 0, 2: 0, 3: 1, 4: 0, 6: 2, 7: 3, 8: 0, 15: 7}
	for hk, want := range cases {
		if got := clearTopBit(hk); got != want {
			t.Fatalf("clearTopBit(%d) = %d, want %d", hk, got, want)
		}
	}
}
