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

// buildContext rebuilds r's cached context from its own snap set and its
// parent's. Caller must hold e.mu for writing. Recurses up the parent chain
// first so a cached context's seq always dominates its parent's by the time
// this realm's context is computed.
func (e *Engine) buildContext(r *Realm) error {
	var parentCtx *SnapContext
	if r.parent != nil {
		if r.parent.cachedContext == nil {
			if err := e.buildContext(r.parent); err != nil {
				return err
			}
		}
		parentCtx = r.parent.cachedContext
	}

	// Idempotence check: the cache is still valid if it already dominates
	// both this realm's own seq and (if any) the parent's context seq.
	if r.cachedContext != nil && r.cachedContext.seq >= r.seq {
		if parentCtx == nil || r.cachedContext.seq >= parentCtx.seq {
			return nil
		}
	}

	size := len(r.snaps) + len(r.priorParentSnaps)
	if parentCtx != nil {
		size += len(parentCtx.snaps)
	}
	snaps := make([]uint64, 0, size)

	seq := r.seq
	if parentCtx != nil {
		for _, s := range parentCtx.snaps {
			if s >= r.parentSince {
				snaps = append(snaps, s)
			}
		}
		if parentCtx.seq > seq {
			seq = parentCtx.seq
		}
	}
	snaps = append(snaps, r.snaps...)
	snaps = append(snaps, r.priorParentSnaps...)

	next := newSnapContext(seq, snaps)

	r.cachedContext.put()
	r.cachedContext = next
	contextRebuildMeter.Mark(1)
	return nil
}

// rebuildSubtree builds this realm's context, then recurses into every
// child. The top-down order is what keeps contexts correct — each child
// observes its parent's freshly rebuilt context. Caller must hold e.mu for
// writing.
func (e *Engine) rebuildSubtree(r *Realm) error {
	if err := e.buildContext(r); err != nil {
		return err
	}
	for _, child := range r.children {
		if err := e.rebuildSubtree(child); err != nil {
			return err
		}
	}
	return nil
}
