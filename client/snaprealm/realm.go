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

// Realm is one node of the snapshot-realm tree: a subtree of the namespace
// sharing a snapshot set. All fields are mutated only while the owning
// Engine's graph lock is held for writing; reads that merely inspect a
// realm's fields (not walk parent/children) are safe under a read lock.
type Realm struct {
	ino uint64 // stable, unique within the registry

	seq     uint64 // server-assigned logical version, monotonic non-decreasing
	created uint64 // server-assigned creation timestamp (logical)

	parentIno   uint64
	parent      *Realm
	parentSince uint64 // point at which parent became current; filters inheritance

	snaps            []uint64 // snapshots created directly on this realm
	priorParentSnaps []uint64 // snapshots inherited from previous parents

	children      map[uint64]*Realm
	inodesWithCaps map[uint64]struct{}

	cachedContext *SnapContext // nil if invalidated and not yet rebuilt

	nref int32 // strong references; the registry itself holds none
}

// newRealm allocates an empty realm with the bookkeeping collections
// initialized. The registry (registry.go) is the only caller.
func newRealm(ino uint64) *Realm {
	return &Realm{
		ino:            ino,
		children:       make(map[uint64]*Realm),
		inodesWithCaps: make(map[uint64]struct{}),
	}
}

// Ino returns the realm's stable identifier.
func (r *Realm) Ino() uint64 { return r.ino }

// Seq returns the realm's server-assigned logical version.
func (r *Realm) Seq() uint64 { return r.seq }

// Parent returns the current parent, or nil at the root.
func (r *Realm) Parent() *Realm { return r.parent }

// adjustParent reparents r under the realm identified by newParentIno,
// allocating that realm if it doesn't exist yet. Returns true if the parent
// actually changed. Must be called with the graph lock held for writing.
//
// Parent adjustment does not by itself invalidate r's cached context; the
// caller combines it with a seq bump and decides whether to rebuild
// (handler.go).
func (e *Engine) adjustParent(r *Realm, newParentIno uint64) (bool, error) {
	if r.parentIno == newParentIno {
		return false, nil
	}
	newParent, err := e.getOrCreateLocked(newParentIno)
	if err != nil {
		return false, err
	}
	if r.parent != nil {
		delete(r.parent.children, r.ino)
		e.putLocked(r.parent)
	}
	r.parentIno = newParentIno
	r.parent = newParent
	newParent.children[r.ino] = r
	return true, nil
}
