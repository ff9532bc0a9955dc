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

// handleSplit processes a split message: part of realm O becomes a new
// child realm N, migrating specific inodes and sub-realms. The ordering
// across the three phases below — capture cap_snaps under O's old context,
// then reparent, then migrate inodes into N — is the crucial contract.
func (e *Engine) handleSplit(msg *Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRealm, err := e.getOrCreateLocked(msg.Split)
	if err != nil {
		return err
	}
	defer e.putLocked(newRealm)

	tr := NewTraceReader(msg.Trace)
	peek, err := tr.Peek()
	if err != nil {
		return err
	}
	newRealm.created = peek.Created

	var migrants []uint64

	for _, ino := range msg.SplitInos {
		inode, ok := e.deps.Inodes.LookupInode(ino)
		if !ok {
			continue
		}
		oldRealm, ok := e.inodeRealm[ino]
		if !ok {
			continue
		}
		if oldRealm.created > newRealm.created {
			// A race with another MDS's split already placed this inode in
			// a newer realm; leave it where it is.
			staleRaceMeter.Mark(1)
			log.Debug("snaprealm: split: stale race, inode left in place", "ino", ino, "realm", oldRealm.ino)
			continue
		}
		delete(oldRealm.inodesWithCaps, ino)
		delete(e.inodeRealm, ino)
		// Capture under the OLD context before the inode migrates anywhere.
		e.queueCapSnap(inode, oldRealm.cachedContext)
		migrants = append(migrants, ino)
		e.putLocked(oldRealm)
	}

	for _, childIno := range msg.SplitRealms {
		child, err := e.getOrCreateLocked(childIno)
		if err != nil {
			return err
		}
		if _, err := e.adjustParent(child, newRealm.ino); err != nil {
			e.putLocked(child)
			return err
		}
		e.putLocked(child)
	}

	traceHead, err := e.updateSnapTraceLocked(tr, false)
	if err != nil {
		return err
	}
	if traceHead != nil {
		e.putLocked(traceHead)
	}

	for _, ino := range migrants {
		newRealm.inodesWithCaps[ino] = struct{}{}
		newRealm.nref++
		e.inodeRealm[ino] = newRealm
	}
	return nil
}
