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

// RealmInfo is a read-only snapshot of one realm's state, for inspection
// tooling (cmd/realmdump) and tests. It never aliases engine-owned slices.
type RealmInfo struct {
	Ino          uint64
	ParentIno    uint64
	HasParent    bool
	Seq          uint64
	Created      uint64
	Snaps        []uint64
	ContextSeq   uint64
	ContextSnaps []uint64
	Children     []uint64
	Nref         int32
}

// DumpRealms returns a point-in-time snapshot of every registered realm.
// Order is unspecified; callers that want a tree print should index by Ino
// and walk from roots (HasParent == false).
func (e *Engine) DumpRealms() []RealmInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RealmInfo, 0, len(e.realms))
	for _, r := range e.realms {
		info := RealmInfo{
			Ino:        r.ino,
			ParentIno:  r.parentIno,
			HasParent:  r.parent != nil,
			Seq:        r.seq,
			Created:    r.created,
			Snaps:      append([]uint64(nil), r.snaps...),
			ContextSeq: r.cachedContext.Seq(),
			Nref:       r.nref,
		}
		if ctx := r.cachedContext; ctx != nil {
			info.ContextSnaps = append([]uint64(nil), ctx.Snaps()...)
		}
		for childIno := range r.children {
			info.Children = append(info.Children, childIno)
		}
		out = append(out, info)
	}
	return out
}

// CapSnapInfo is a read-only snapshot of one queued cap_snap, for cmd/realmdump.
type CapSnapInfo struct {
	Ino        uint64
	Follows    uint64
	Writing    bool
	ContextSeq uint64
}

// DumpCapSnaps returns every cap_snap sitting on an inode's queue. This
// package never removes queue entries, so cap_snaps already handed to the
// flush list or flushed by FlushSnaps are included too.
func (e *Engine) DumpCapSnaps() []CapSnapInfo {
	e.capMu.Lock()
	defer e.capMu.Unlock()

	var out []CapSnapInfo
	for ino, st := range e.capStates {
		for _, cs := range st.queue {
			out = append(out, CapSnapInfo{
				Ino:        ino,
				Follows:    cs.follows,
				Writing:    cs.writing,
				ContextSeq: cs.context.Seq(),
			})
		}
	}
	return out
}
