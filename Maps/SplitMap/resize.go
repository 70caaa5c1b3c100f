package SplitMap

// checkSize implements the resize trigger (§4.5). It runs at the start of
// every public operation (Find, Mem, Add, Remove). When the trie already has room to double the
// logical modulus, that's the fast path: no trie growth needed, just a
// bigger size, which lazily creates more sentinels on demand via §4.4.
// Otherwise it requests a trie growth and helps whichever resize (its own
// request or someone else's) is in flight.
func (m *Map[K, V]) checkSize() {
	s := m.size.Load()
	if s == 0 {
		return
	}
	c := m.content.Load()
	if c/s <= m.load {
		return
	}
	if 2*s <= m.accessSize.Load() {
		m.size.CompareAndSwap(s, 2*s)
		m.checkSize()
		return
	}
	target := m.nbBucket * m.accessSize.Load()
	m.resize.CompareAndSwap(0, target+1)
	m.helpResize()
}

// helpResize drives (or helps another thread drive) a trie growth to the
// currently requested target access_size, then falls through to
// checkSize in case growth is still insufficient (§4.5 step 4). Any
// number of concurrent helpers may run this at once; every step is
// idempotent under the guard "already past target," so they converge
// without duplicating work.
func (m *Map[K, V]) helpResize() {
	rt := m.resize.Load()
	if rt == 0 {
		m.checkSize()
		return
	}
	target := rt - 1

	var bo Backoff
	for {
		if curRoot := m.access.Load(); m.sizeOfAccess(*curRoot) < target {
			cand := newLevel[K, V](m.nbBucket)
			// Installing the old root as slot 0's child preserves every
			// sentinel handle already installed under it at its original
			// bucket index: they still live at slot 0 of the new root.
			cand[0].v.Store(&cellValue[K, V]{children: *curRoot})
			m.access.CompareAndSwap(curRoot, &cand)
		}
		if cur := m.accessSize.Load(); cur < target {
			m.accessSize.CompareAndSwap(cur, target)
		}
		if m.resize.Load() == target+1 {
			m.resize.CompareAndSwap(target+1, 0)
		}

		accessDone := m.sizeOfAccess(*m.access.Load()) >= target
		sizeDone := m.accessSize.Load() >= target
		resizeDone := m.resize.Load() != target+1
		if accessDone && sizeDone && resizeDone {
			break
		}
		bo.once()
	}
	m.checkSize()
}
