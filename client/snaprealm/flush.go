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

// pushFlushable enqueues inode onto the snap-flush list. The list lock is a
// plain mutex, held only for the O(1) append — never across anything that
// could block on network or page I/O.
func (e *Engine) pushFlushable(inode InodeRef) {
	e.flushMu.Lock()
	e.flushList = append(e.flushList, inode)
	e.flushMu.Unlock()
}

// popFlushable dequeues the next inode, or nil if the list is empty.
func (e *Engine) popFlushable() InodeRef {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	if len(e.flushList) == 0 {
		return nil
	}
	inode := e.flushList[0]
	e.flushList = e.flushList[1:]
	return inode
}

// FlushSnaps drains the snap-flush list, flushing each inode's pending
// cap_snaps to its MDS session. It reuses one session handle across runs of
// consecutive inodes that share an MDS, the same way wipeKeyRange reuses one
// batch/iterator pair across a long delete run to amortize per-call cost.
// No graph lock is held during this loop.
func (e *Engine) FlushSnaps() {
	var (
		curID   int32
		current MDSSession
		have    bool
	)
	for {
		inode := e.popFlushable()
		if inode == nil {
			return
		}
		mdsID := inode.MDSID()
		if !have || mdsID != curID {
			sess, ok := e.deps.Sessions.GetMDSSession(mdsID)
			if !ok {
				log.Warn("snaprealm: flush: missing mds session", "ino", inode.Ino(), "mds", mdsID)
				continue
			}
			current, curID, have = sess, mdsID, true
		}
		if err := current.FlushCapSnaps(inode.Ino()); err != nil {
			log.Warn("snaprealm: flush failed", "ino", inode.Ino(), "err", err)
			continue
		}
		capSnapFlushedMeter.Mark(1)
	}
}
