// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package snaprealm

import "sort"

// SnapContext is the immutable, refcounted set of snapshot IDs that an
// outgoing write must carry. Snaps is always sorted newest-first
// (descending); downstream code relies on Snaps()[0] being the newest
// snapshot, so binary search against it is valid.
type SnapContext struct {
	seq   uint64
	snaps []uint64
	refs  int32
}

// newSnapContext builds a context from a snap ID slice, sorting it
// descending in place. The slice is retained, not copied.
func newSnapContext(seq uint64, snaps []uint64) *SnapContext {
	sort.Sort(sort.Reverse(uint64Slice(snaps)))
	return &SnapContext{seq: seq, snaps: snaps, refs: 1}
}

// Seq returns the sequence number of this context. A nil context (no
// context has been built yet for the owning realm) reports seq 0.
func (sc *SnapContext) Seq() uint64 {
	if sc == nil {
		return 0
	}
	return sc.seq
}

// Snaps returns the descending-sorted snapshot IDs attached to writes using
// this context. Callers must not mutate the returned slice.
func (sc *SnapContext) Snaps() []uint64 {
	if sc == nil {
		return nil
	}
	return sc.snaps
}

// get takes a reference on the context. Must be called with the engine's
// realm-graph lock held, since contexts are swapped out from under realms
// under that lock (build.go).
func (sc *SnapContext) get() *SnapContext {
	if sc != nil {
		sc.refs++
	}
	return sc
}

// put drops a reference taken by get. The refcount exists to mirror the
// teacher's manual-memory-management discipline and lets tests assert that
// writes in flight are still pinning the old context across a rebuild; Go's
// GC reclaims the backing memory regardless of refs reaching zero.
func (sc *SnapContext) put() {
	if sc != nil {
		sc.refs--
	}
}

// refCount reports outstanding references. Exposed for tests only.
func (sc *SnapContext) refCount() int32 {
	if sc == nil {
		return 0
	}
	return sc.refs
}

// uint64Slice implements sort.Interface over raw snapshot IDs.
type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
