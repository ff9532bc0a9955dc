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

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
)

// CapFileWr is the capability bit indicating an active file writer. Its
// exact position mirrors the MDS capability wire format, which is owned by
// the capability layer outside this package; the engine only needs to test
// it against InodeRef.CapsUsed().
const CapFileWr uint32 = 1 << 4

// FlushResult reports whether a finished cap_snap is ready to hand to the
// flush driver or must wait out pending writeback.
type FlushResult int

const (
	// Flushable means the cap_snap was added to the snap-flush list.
	Flushable FlushResult = iota
	// NotYetFlushable means dirty pages are still outstanding; the cap_snap
	// stays on the inode's queue until a writeback completion calls
	// FinishCapSnap again.
	NotYetFlushable
)

// CapSnap is a per-inode, per-snapshot capability capture awaiting flush to
// the MDS.
type CapSnap struct {
	ino     uint64
	context *SnapContext
	follows uint64
	issued  uint32
	dirty   uint32
	writing bool

	size        uint64
	mtimeSec    int64
	mtimeNsec   int64
	atimeSec    int64
	atimeNsec   int64
	ctimeSec    int64
	ctimeNsec   int64
	timeWarpSeq uint64
}

// Context returns the snap context this capture was queued under.
func (cs *CapSnap) Context() *SnapContext { return cs.context }

// Follows returns the snapshot id immediately preceding this capture.
func (cs *CapSnap) Follows() uint64 { return cs.follows }

// Writing reports whether this capture is pending an in-flight writer.
func (cs *CapSnap) Writing() bool { return cs.writing }

// capState is the per-inode cap_snap queue. The real inode struct lives in
// the external inode cache; this package owns the queue itself since the
// cap_snap lifecycle lives here. A single engine-wide mutex stands in for a
// true per-inode lock — coarser than per-inode sharding, but it preserves
// the same ordering guarantees (see DESIGN.md).
type capState struct {
	queue []*CapSnap
}

// queueCapSnap captures a new cap_snap for inode under ctx, or does nothing
// if one is already pending on an in-flight writer. Caller must hold e.mu
// (the realm graph lock) in at least read mode; this method additionally
// takes the per-inode lock (e.capMu) itself.
func (e *Engine) queueCapSnap(inode InodeRef, ctx *SnapContext) {
	if ctx == nil {
		// The realm has never had a context built (e.g. an inode attached to
		// a just-created realm before its first trace record lands). There
		// is no prior snapshot set to capture the inode against yet.
		return
	}

	e.capMu.Lock()
	defer e.capMu.Unlock()

	ino := inode.Ino()
	st := e.capStates[ino]
	if st == nil {
		st = &capState{}
		e.capStates[ino] = st
	}
	for _, cs := range st.queue {
		if cs.writing {
			// No second pending cap_snap is ever queued: no new writes are
			// permitted to start while one is pending (enforced by the
			// capability layer, not here).
			return
		}
	}

	cs := &CapSnap{
		ino:     ino,
		context: ctx.get(),
		follows: ctx.Seq() - 1,
		issued:  inode.CapsIssued(),
	}
	st.queue = append(st.queue, cs)
	capSnapQueuedMeter.Mark(1)

	if inode.CapsUsed()&CapFileWr != 0 {
		cs.writing = true
		return
	}
	e.finishCapSnapLocked(inode, cs)
}

// FinishCapSnap records the current inode state into cs and hands it to the
// flush driver if no dirty pages remain outstanding on the head revision.
// It is called either immediately by queueCapSnap (no in-flight writer) or
// repeatedly by the writeback-completion path until the head revision's
// dirty count reaches zero — the closest analogue is disklayer_generate.go's
// genAbort handshake, where a pending background operation is signalled and
// reports back before the caller proceeds.
func (e *Engine) FinishCapSnap(ino uint64, cs *CapSnap) (FlushResult, error) {
	inode, ok := e.deps.Inodes.LookupInode(ino)
	if !ok {
		return 0, fmt.Errorf("snaprealm: finish cap_snap: %w", ErrUnknownRealm)
	}
	e.capMu.Lock()
	defer e.capMu.Unlock()
	return e.finishCapSnapLocked(inode, cs), nil
}

// finishCapSnapLocked must be called with e.capMu held.
func (e *Engine) finishCapSnapLocked(inode InodeRef, cs *CapSnap) FlushResult {
	if cs.writing {
		panic("snaprealm: finish-cap-snap called while writing is still pending")
	}
	cs.size = inode.Size()
	cs.mtimeSec, cs.mtimeNsec = inode.Mtime()
	cs.atimeSec, cs.atimeNsec = inode.Atime()
	cs.ctimeSec, cs.ctimeNsec = inode.Ctime()
	cs.timeWarpSeq = inode.TimeWarpSeq()
	cs.dirty = inode.HeadDirtyPages()

	if cs.dirty > 0 {
		return NotYetFlushable
	}
	e.pushFlushable(inode)
	return Flushable
}

// queueCapSnapsForInodes runs queue-cap-snap for every inode named by inos,
// skipping any that aren't currently resident — used when a realm's seq
// advances (handler.go) and when a split detaches inodes (split.go).
func (e *Engine) queueCapSnapsForInodes(inos map[uint64]struct{}, ctx *SnapContext) {
	for ino := range inos {
		inode, ok := e.deps.Inodes.LookupInode(ino)
		if !ok {
			log.Debug("snaprealm: cap_snap skipped, inode not resident", "ino", ino)
			continue
		}
		e.queueCapSnap(inode, ctx)
	}
}
