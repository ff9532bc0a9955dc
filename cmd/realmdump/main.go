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

// Command realmdump replays a recorded snap message against a standalone
// realm engine and prints the resulting realm tree and any cap_snaps left
// queued. It takes no live MDS session or inode cache: inode lookups and
// MDS sessions simply miss, so no inode is attached to any realm, split
// inodes named by the message are skipped as not resident, and the replay
// queues no cap_snaps. Useful for inspecting a trace captured off the wire without
// standing up a mount.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"sort"

	"github.com/ceph/go-cephfs-client/client/snaprealm"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "<message-file>")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, `
Replays one binary-encoded snap message (header + split arrays + trace,
as produced by snaprealm.EncodeMessage) and dumps the realm tree.`)
	}
}

type nullInodes struct{}

func (nullInodes) LookupInode(uint64) (snaprealm.InodeRef, bool) { return nil, false }

type nullSessions struct{}

func (nullSessions) GetMDSSession(int32) (snaprealm.MDSSession, bool) { return nil, false }

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: one argument needed")
		flag.Usage()
		os.Exit(2)
	}

	raw, err := ioutil.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Printf("Error reading message file: %v\n", err)
		os.Exit(1)
	}

	e := snaprealm.NewEngine(snaprealm.Deps{
		Inodes:   nullInodes{},
		Sessions: nullSessions{},
	})
	e.HandleSnap(raw)

	printRealmTree(e)
	printCapSnaps(e)
}

func printRealmTree(e *snaprealm.Engine) {
	realms := e.DumpRealms()
	byIno := make(map[uint64]snaprealm.RealmInfo, len(realms))
	for _, r := range realms {
		byIno[r.Ino] = r
	}

	var roots []uint64
	for _, r := range realms {
		if !r.HasParent {
			roots = append(roots, r.Ino)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	fmt.Printf("realms: %d\n", len(realms))
	for _, root := range roots {
		printRealmNode(byIno, root, 0)
	}
}

func printRealmNode(byIno map[uint64]snaprealm.RealmInfo, ino uint64, depth int) {
	r, ok := byIno[ino]
	if !ok {
		return
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%s realm %d  seq=%d created=%d snaps=%v context(seq=%d,snaps=%v) nref=%d\n",
		indent, r.Ino, r.Seq, r.Created, r.Snaps, r.ContextSeq, r.ContextSnaps, r.Nref)

	children := append([]uint64(nil), r.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	for _, c := range children {
		printRealmNode(byIno, c, depth+1)
	}
}

func printCapSnaps(e *snaprealm.Engine) {
	caps := e.DumpCapSnaps()
	fmt.Printf("queued cap_snaps: %d\n", len(caps))
	sort.Slice(caps, func(i, j int) bool { return caps[i].Ino < caps[j].Ino })
	for _, cs := range caps {
		fmt.Printf("  ino=%d follows=%d writing=%v context_seq=%d\n",
			cs.Ino, cs.Follows, cs.Writing, cs.ContextSeq)
	}
}
