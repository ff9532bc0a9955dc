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

// fakeInode is a minimal InodeRef for tests; real inode state lives in the
// external inode cache.
type fakeInode struct {
	ino        uint64
	capsUsed   uint32
	capsIssued uint32
	size       uint64
	mtimeSec   int64
	mtimeNsec  int64
	atimeSec   int64
	atimeNsec  int64
	ctimeSec   int64
	ctimeNsec  int64
	warpSeq    uint64
	dirty      uint32
	mdsID      int32
}

func (f *fakeInode) Ino() uint64         { return f.ino }
func (f *fakeInode) CapsUsed() uint32    { return f.capsUsed }
func (f *fakeInode) CapsIssued() uint32  { return f.capsIssued }
func (f *fakeInode) Size() uint64        { return f.size }
func (f *fakeInode) Mtime() (int64, int64) { return f.mtimeSec, f.mtimeNsec }
func (f *fakeInode) Atime() (int64, int64) { return f.atimeSec, f.atimeNsec }
func (f *fakeInode) Ctime() (int64, int64) { return f.ctimeSec, f.ctimeNsec }
func (f *fakeInode) TimeWarpSeq() uint64 { return f.warpSeq }
func (f *fakeInode) MDSID() int32        { return f.mdsID }

func (f *fakeInode) HeadDirtyPages() uint32 { return f.dirty }

type fakeInodeSource struct {
	inodes map[uint64]*fakeInode
}

func newFakeInodeSource() *fakeInodeSource {
	return &fakeInodeSource{inodes: make(map[uint64]*fakeInode)}
}

func (s *fakeInodeSource) add(i *fakeInode) { s.inodes[i.ino] = i }

func (s *fakeInodeSource) LookupInode(ino uint64) (InodeRef, bool) {
	i, ok := s.inodes[ino]
	return i, ok
}

type fakeSession struct {
	id      int32
	flushed []uint64
}

func (s *fakeSession) FlushCapSnaps(ino uint64) error {
	s.flushed = append(s.flushed, ino)
	return nil
}

type fakeSessionSource struct {
	sessions map[int32]*fakeSession
}

func newFakeSessionSource() *fakeSessionSource {
	return &fakeSessionSource{sessions: make(map[int32]*fakeSession)}
}

func (s *fakeSessionSource) add(id int32) *fakeSession {
	sess := &fakeSession{id: id}
	s.sessions[id] = sess
	return sess
}

func (s *fakeSessionSource) GetMDSSession(id int32) (MDSSession, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

func newTestEngine() (*Engine, *fakeInodeSource, *fakeSessionSource) {
	inodes := newFakeInodeSource()
	sessions := newFakeSessionSource()
	e := NewEngine(Deps{Inodes: inodes, Sessions: sessions})
	return e, inodes, sessions
}

// buildTrace concatenates the wire encoding of recs, deepest realm first.
func buildTrace(recs ...Record) []byte {
	var out []byte
	for _, r := range recs {
		out = EncodeRecord(out, r)
	}
	return out
}
