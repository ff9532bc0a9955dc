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

// Package snaprealm implements the client-side snapshot realm engine: the
// realm graph, derived snap contexts, the trace/split wire protocol, and the
// cap_snap capture/flush lifecycle.
package snaprealm

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var (
	// ErrOutOfMemory names a failed realm or context allocation. No function
	// in this package returns it: allocation in Go does not fail with an
	// error, so getOrCreateLocked always succeeds.
	ErrOutOfMemory = errors.New("snaprealm: out of memory")

	// ErrUnknownRealm is returned when an operation names a realm that was
	// never registered. FinishCapSnap also returns it, wrapped, when the
	// inode it is given is not resident in the inode cache.
	ErrUnknownRealm = errors.New("snaprealm: unknown realm")

	// ErrMalformed is returned by the trace decoder on underflow or an
	// impossible length field.
	ErrMalformed = errors.New("snaprealm: malformed snap message")

	// ErrMissingSession names an MDS id the session layer doesn't know
	// about. No function in this package returns it: HandleSnap does no
	// session lookup, and FlushSnaps logs and skips an inode whose session
	// is missing.
	ErrMissingSession = errors.New("snaprealm: missing mds session")
)

// InodeRef is the subset of inode state the engine needs; the real inode
// cache and page cache live outside this package.
type InodeRef interface {
	Ino() uint64
	CapsUsed() uint32
	CapsIssued() uint32
	Size() uint64
	Mtime() (sec, nsec int64)
	Atime() (sec, nsec int64)
	Ctime() (sec, nsec int64)
	TimeWarpSeq() uint64
	// HeadDirtyPages reports the inode's current outstanding dirty-page
	// count on the head revision, i.e. data buffered but not yet flushed
	// to the OSDs.
	HeadDirtyPages() uint32
	// MDSID reports which MDS session currently owns this inode's caps, so
	// the flush driver knows which session to flush through.
	MDSID() int32
}

// InodeSource resolves an inode by identity. Implemented by the inode cache.
type InodeSource interface {
	LookupInode(ino uint64) (InodeRef, bool)
}

// MDSSession flushes one inode's queued cap_snaps to a particular MDS.
// Implemented by the MDS session layer.
type MDSSession interface {
	FlushCapSnaps(ino uint64) error
}

// SessionSource resolves an MDS session by id. Implemented by the MDS
// session layer.
type SessionSource interface {
	GetMDSSession(mdsID int32) (MDSSession, bool)
}

// Deps bundles the external collaborators the engine consumes from.
type Deps struct {
	Inodes   InodeSource
	Sessions SessionSource
}

// Engine is the realm registry (C2) plus the flush list (C6): the indexed
// collection of all known realms, keyed by realm id, and the queue of
// inodes with flushable cap_snaps. It is the top-level value applications
// construct; everything else in this package hangs off it.
type Engine struct {
	mu         sync.RWMutex
	realms     map[uint64]*Realm
	inodeRealm map[uint64]*Realm // reverse index: every capped inode maps to exactly one realm

	flushMu   sync.Mutex
	flushList []InodeRef

	capMu      sync.Mutex
	capStates  map[uint64]*capState

	deps Deps
}

// NewEngine constructs an empty engine bound to the given external
// collaborators.
func NewEngine(deps Deps) *Engine {
	return &Engine{
		realms:     make(map[uint64]*Realm),
		inodeRealm: make(map[uint64]*Realm),
		capStates:  make(map[uint64]*capState),
		deps:       deps,
	}
}

// AttachInode records that ino now holds an open capability in realm,
// keeping every capped inode mapped to exactly one realm's
// inodes_with_caps set. Bumps realm's reference count; that reference is
// released by DetachInode, or by a later AttachInode that moves ino to
// another realm, so callers do not PutRealm it themselves.
func (e *Engine) AttachInode(ino uint64, realm *Realm) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.inodeRealm[ino]; ok {
		delete(old.inodesWithCaps, ino)
		e.putLocked(old)
	}
	realm.inodesWithCaps[ino] = struct{}{}
	realm.nref++
	e.inodeRealm[ino] = realm
}

// DetachInode removes ino from whatever realm it currently belongs to, used
// when its last capability is released.
func (e *Engine) DetachInode(ino uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	realm, ok := e.inodeRealm[ino]
	if !ok {
		return
	}
	delete(realm.inodesWithCaps, ino)
	delete(e.inodeRealm, ino)
	e.putLocked(realm)
}

// GetRealm returns the realm for ino with an extra reference, or
// ErrUnknownRealm if it has never been registered.
func (e *Engine) GetRealm(ino uint64) (*Realm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.realms[ino]
	if !ok {
		return nil, ErrUnknownRealm
	}
	r.nref++
	return r, nil
}

// GetOrCreateRealm returns the realm for ino with an extra reference,
// allocating it if this is the first reference anyone has taken. Used by
// the inode cache when it instantiates an inode whose realm may not yet
// have been named by an inbound trace.
func (e *Engine) GetOrCreateRealm(ino uint64) *Realm {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _ := e.getOrCreateLocked(ino)
	return r
}

// PutRealm releases a reference taken by GetRealm or getOrCreateLocked.
func (e *Engine) PutRealm(r *Realm) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.putLocked(r)
}

// Context returns a shared reference to realm r's current snap context,
// building it first if necessary. This is the engine's exposed
// get_context(realm) operation.
func (e *Engine) Context(r *Realm) *SnapContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.buildContext(r); err != nil {
		log.Error("snaprealm: failed to build context on demand", "realm", r.ino, "err", err)
	}
	return r.cachedContext.get()
}

// getOrCreateLocked returns the realm for ino, allocating it if this is the
// first reference anyone has taken on it. Caller must hold e.mu for
// writing.
func (e *Engine) getOrCreateLocked(ino uint64) (*Realm, error) {
	r, ok := e.realms[ino]
	if !ok {
		r = newRealm(ino)
		e.realms[ino] = r
		realmsCreatedMeter.Mark(1)
	}
	r.nref++
	return r, nil
}

// putLocked releases a reference on r, tearing the realm down and
// releasing its parent's reference in turn once the count reaches zero.
// Caller must hold e.mu for writing.
func (e *Engine) putLocked(r *Realm) {
	r.nref--
	if r.nref > 0 {
		return
	}
	if r.parent != nil {
		delete(r.parent.children, r.ino)
		e.putLocked(r.parent)
	}
	r.priorParentSnaps = nil
	r.snaps = nil
	r.cachedContext.put()
	r.cachedContext = nil
	delete(e.realms, r.ino)
	realmsDestroyedMeter.Mark(1)
}

// realmCount reports the number of registered realms, for tests.
func (e *Engine) realmCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.realms)
}
