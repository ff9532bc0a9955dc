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

import "encoding/binary"

// Opcode identifies the kind of snap message received from the MDS.
type Opcode uint32

const (
	OpUpdate Opcode = iota
	OpCreate
	OpDestroy
	OpSplit
)

// messageHeaderLen is the fixed-size prefix before the split/trace payload:
// op, split, num_split_inos, num_split_realms, trace_len.
const messageHeaderLen = 4 + 8 + 4 + 4 + 4

// recordHeaderLen is the fixed-size prefix of a trace record: ino, parent,
// seq, created, parent_since, num_snaps, num_prior_parent_snaps.
const recordHeaderLen = 8 + 8 + 8 + 8 + 8 + 4 + 4

// Message is a decoded inbound snap message.
type Message struct {
	Op          Opcode
	Split       uint64
	SplitInos   []uint64
	SplitRealms []uint64
	Trace       []byte // still-encoded; consumed record-by-record via TraceReader
}

// Record is one decoded trace record: a single realm's state as of this
// message, deepest-nested first.
type Record struct {
	Ino              uint64
	Parent           uint64
	Seq              uint64
	Created          uint64
	ParentSince      uint64
	Snaps            []uint64
	PriorParentSnaps []uint64
}

// DecodeMessage decodes a wire-format snap message header and split arrays.
// The trace itself is left encoded in Message.Trace for the caller to walk
// with a TraceReader, since trace records are processed one at a time with
// side effects interleaved between them.
func DecodeMessage(b []byte) (*Message, error) {
	if len(b) < messageHeaderLen {
		return nil, ErrMalformed
	}
	m := &Message{
		Op:    Opcode(binary.LittleEndian.Uint32(b[0:4])),
		Split: binary.LittleEndian.Uint64(b[4:12]),
	}
	numInos := binary.LittleEndian.Uint32(b[12:16])
	numRealms := binary.LittleEndian.Uint32(b[16:20])
	traceLen := binary.LittleEndian.Uint32(b[20:24])
	b = b[messageHeaderLen:]

	inosLen := int(numInos) * 8
	if inosLen < 0 || len(b) < inosLen {
		return nil, ErrMalformed
	}
	m.SplitInos = make([]uint64, numInos)
	for i := range m.SplitInos {
		m.SplitInos[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	b = b[inosLen:]

	realmsLen := int(numRealms) * 8
	if realmsLen < 0 || len(b) < realmsLen {
		return nil, ErrMalformed
	}
	m.SplitRealms = make([]uint64, numRealms)
	for i := range m.SplitRealms {
		m.SplitRealms[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	b = b[realmsLen:]

	if int(traceLen) < 0 || len(b) < int(traceLen) {
		return nil, ErrMalformed
	}
	m.Trace = b[:traceLen]
	return m, nil
}

// TraceReader walks the concatenated, deepest-first trace records of a snap
// message. It mirrors loadDiffLayer's recursive stream-consume pattern, but
// iteratively: the caller drives one record at a time because the handler
// must mutate engine state between records.
type TraceReader struct {
	buf []byte
}

// NewTraceReader wraps a still-encoded trace for record-at-a-time decoding.
func NewTraceReader(trace []byte) *TraceReader {
	return &TraceReader{buf: trace}
}

// Done reports whether the cursor has reached the trace's end boundary,
// i.e. the root record has already been consumed.
func (tr *TraceReader) Done() bool {
	return len(tr.buf) == 0
}

// Peek decodes the next record without consuming it, so the split handler
// can learn the new realm's created timestamp before trace processing
// proper begins.
func (tr *TraceReader) Peek() (*Record, error) {
	tmp := &TraceReader{buf: tr.buf}
	return tmp.Next()
}

// Next decodes and consumes the next record.
func (tr *TraceReader) Next() (*Record, error) {
	if len(tr.buf) < recordHeaderLen {
		return nil, ErrMalformed
	}
	rec := &Record{
		Ino:         binary.LittleEndian.Uint64(tr.buf[0:8]),
		Parent:      binary.LittleEndian.Uint64(tr.buf[8:16]),
		Seq:         binary.LittleEndian.Uint64(tr.buf[16:24]),
		Created:     binary.LittleEndian.Uint64(tr.buf[24:32]),
		ParentSince: binary.LittleEndian.Uint64(tr.buf[32:40]),
	}
	numSnaps := binary.LittleEndian.Uint32(tr.buf[40:44])
	numPrior := binary.LittleEndian.Uint32(tr.buf[44:48])
	buf := tr.buf[recordHeaderLen:]

	snapsLen := int(numSnaps) * 8
	if snapsLen < 0 || len(buf) < snapsLen {
		return nil, ErrMalformed
	}
	rec.Snaps = make([]uint64, numSnaps)
	for i := range rec.Snaps {
		rec.Snaps[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	buf = buf[snapsLen:]

	priorLen := int(numPrior) * 8
	if priorLen < 0 || len(buf) < priorLen {
		return nil, ErrMalformed
	}
	rec.PriorParentSnaps = make([]uint64, numPrior)
	for i := range rec.PriorParentSnaps {
		rec.PriorParentSnaps[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	buf = buf[priorLen:]

	tr.buf = buf
	return rec, nil
}

// EncodeRecord appends rec's wire encoding to dst, for tests and
// cmd/realmdump fixtures.
func EncodeRecord(dst []byte, rec Record) []byte {
	var hdr [recordHeaderLen]byte
	binary.LittleEndian.PutUint64(hdr[0:8], rec.Ino)
	binary.LittleEndian.PutUint64(hdr[8:16], rec.Parent)
	binary.LittleEndian.PutUint64(hdr[16:24], rec.Seq)
	binary.LittleEndian.PutUint64(hdr[24:32], rec.Created)
	binary.LittleEndian.PutUint64(hdr[32:40], rec.ParentSince)
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(rec.Snaps)))
	binary.LittleEndian.PutUint32(hdr[44:48], uint32(len(rec.PriorParentSnaps)))
	dst = append(dst, hdr[:]...)
	dst = appendUint64s(dst, rec.Snaps)
	dst = appendUint64s(dst, rec.PriorParentSnaps)
	return dst
}

// EncodeMessage builds the wire encoding of a full snap message (header,
// split arrays, trace), for tests and cmd/realmdump fixtures.
func EncodeMessage(op Opcode, split uint64, splitInos, splitRealms []uint64, trace []byte) []byte {
	var hdr [messageHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(op))
	binary.LittleEndian.PutUint64(hdr[4:12], split)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(splitInos)))
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(splitRealms)))
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(len(trace)))

	out := append([]byte{}, hdr[:]...)
	out = appendUint64s(out, splitInos)
	out = appendUint64s(out, splitRealms)
	out = append(out, trace...)
	return out
}

func appendUint64s(dst []byte, vals []uint64) []byte {
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], v)
		dst = append(dst, buf[:]...)
	}
	return dst
}
