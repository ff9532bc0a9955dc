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

import "github.com/ethereum/go-ethereum/log"

// HandleSnap decodes and applies one inbound snap message. This is the
// engine's single exposed entry point for inbound traffic; it never returns
// an error up to the messenger, since every failure mode here (a malformed
// message, a failed trace or split application) is handled by dropping and
// logging, not propagating. It takes no MDS id and does no session lookup,
// so a message from an unknown MDS is not detected here — the closest
// precedent is New()'s fallback from a corrupted
// persisted snapshot straight into regeneration rather than surfacing the
// corruption to its own caller.
func (e *Engine) HandleSnap(raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		malformedMeter.Mark(1)
		log.Warn("snaprealm: dropping malformed snap message", "err", err)
		return
	}
	if msg.Op == OpSplit {
		if err := e.handleSplit(msg); err != nil {
			log.Warn("snaprealm: split handling failed", "err", err)
		}
		return
	}
	r, err := e.updateSnapTrace(msg.Trace, msg.Op == OpDestroy)
	if err != nil {
		log.Warn("snaprealm: trace handling failed", "err", err)
		return
	}
	if r != nil {
		e.PutRealm(r)
	}
}

// updateSnapTrace decodes and applies one trace, walking deepest-realm
// first. isDestroy suppresses cap_snap queueing (the snap set is
// disappearing, not advancing). Returns the deepest realm encountered with
// one extra reference, which the caller must release.
func (e *Engine) updateSnapTrace(trace []byte, isDestroy bool) (*Realm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.updateSnapTraceLocked(NewTraceReader(trace), isDestroy)
}

// updateSnapTraceLocked is the core of updateSnapTrace without the locking;
// the caller must hold e.mu for writing. It is reused by the split handler
// (split.go), which already holds e.mu when it reaches the embedded trace.
func (e *Engine) updateSnapTraceLocked(tr *TraceReader, isDestroy bool) (*Realm, error) {
	var (
		first      *Realm
		last       *Realm
		invalidate bool
	)
	for !tr.Done() {
		rec, err := tr.Next()
		if err != nil {
			malformedMeter.Mark(1)
			return nil, err
		}
		r, err := e.getOrCreateLocked(rec.Ino)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = r
			r.nref++ // extra reference returned to the caller
		}

		advancing := rec.Seq > r.seq
		if advancing && !isDestroy {
			// Must happen before the realm's state is mutated below: writes
			// already in flight need to keep observing the old context.
			e.queueCapSnapsForInodes(r.inodesWithCaps, r.cachedContext)
		}

		changed, err := e.adjustParent(r, rec.Parent)
		if err != nil {
			e.putLocked(r)
			return nil, err
		}
		invalidate = invalidate || changed

		if advancing {
			r.seq = rec.Seq
			r.created = rec.Created
			r.parentSince = rec.ParentSince
			r.snaps = rec.Snaps
			r.priorParentSnaps = rec.PriorParentSnaps
			invalidate = true
		} else if r.cachedContext == nil {
			invalidate = true
		}

		last = r
		e.putLocked(r)
	}

	if invalidate && last != nil {
		if err := e.rebuildSubtree(last); err != nil {
			return first, err
		}
	}
	return first, nil
}
