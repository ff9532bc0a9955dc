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
	"reflect"
	"testing"
)

func TestSnapContextSortsDescending(t *testing.T) {
	sc := newSnapContext(5, []uint64{3, 9, 1, 7})
	want := []uint64{9, 7, 3, 1}
	if got := sc.Snaps(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snaps() = %v, want %v", got, want)
	}
}

func TestSnapContextNilIsSafe(t *testing.T) {
	var sc *SnapContext
	if sc.Seq() != 0 {
		t.Errorf("nil Seq() = %d, want 0", sc.Seq())
	}
	if sc.Snaps() != nil {
		t.Errorf("nil Snaps() = %v, want nil", sc.Snaps())
	}
	if sc.refCount() != 0 {
		t.Errorf("nil refCount() = %d, want 0", sc.refCount())
	}
	sc.get()
	sc.put() // must not panic
}

func TestSnapContextRefCounting(t *testing.T) {
	sc := newSnapContext(1, []uint64{1})
	if sc.refCount() != 1 {
		t.Fatalf("fresh context refCount() = %d, want 1", sc.refCount())
	}
	sc.get()
	if sc.refCount() != 2 {
		t.Fatalf("after get() refCount() = %d, want 2", sc.refCount())
	}
	sc.put()
	if sc.refCount() != 1 {
		t.Fatalf("after put() refCount() = %d, want 1", sc.refCount())
	}
}

func TestAdjustParentReparents(t *testing.T) {
	e, _, _ := newTestEngine()
	e.mu.Lock()
	defer e.mu.Unlock()

	child, _ := e.getOrCreateLocked(10)
	changed, err := e.adjustParent(child, 1)
	if err != nil {
		t.Fatalf("adjustParent: %v", err)
	}
	if !changed {
		t.Errorf("first adjustParent should report a change")
	}
	if child.Parent() == nil || child.Parent().Ino() != 1 {
		t.Fatalf("child.Parent() = %v, want realm 1", child.Parent())
	}
	if _, ok := child.parent.children[10]; !ok {
		t.Errorf("parent's children set missing child 10")
	}

	// Re-parenting to the same realm is a no-op.
	changed, err = e.adjustParent(child, 1)
	if err != nil {
		t.Fatalf("adjustParent (no-op): %v", err)
	}
	if changed {
		t.Errorf("re-adjusting to the same parent should report no change")
	}

	// Re-parenting elsewhere detaches from the old parent's children set.
	oldParent := child.parent
	changed, err = e.adjustParent(child, 2)
	if err != nil {
		t.Fatalf("adjustParent (move): %v", err)
	}
	if !changed {
		t.Errorf("moving to a new parent should report a change")
	}
	if _, ok := oldParent.children[10]; ok {
		t.Errorf("old parent still lists child 10 after reparenting")
	}
	if child.Parent().Ino() != 2 {
		t.Errorf("child.Parent().Ino() = %d, want 2", child.Parent().Ino())
	}
}

// TestBuildContextSingleRealm covers a realm with no parent and two
// directly-created snapshots.
func TestBuildContextSingleRealm(t *testing.T) {
	e, _, _ := newTestEngine()
	e.mu.Lock()
	r, _ := e.getOrCreateLocked(1)
	r.seq = 2
	r.snaps = []uint64{20, 10}
	if err := e.buildContext(r); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	e.mu.Unlock()

	ctx := r.cachedContext
	if ctx.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", ctx.Seq())
	}
	if want := []uint64{20, 10}; !reflect.DeepEqual(ctx.Snaps(), want) {
		t.Errorf("Snaps() = %v, want %v", ctx.Snaps(), want)
	}
}

// TestBuildContextParentInheritance covers a child realm inheriting its
// parent's snapshots created on or after parentSince.
func TestBuildContextParentInheritance(t *testing.T) {
	e, _, _ := newTestEngine()
	e.mu.Lock()
	defer e.mu.Unlock()

	parent, _ := e.getOrCreateLocked(1)
	parent.seq = 1
	parent.snaps = []uint64{5, 15}
	if err := e.buildContext(parent); err != nil {
		t.Fatalf("buildContext(parent): %v", err)
	}

	child, _ := e.getOrCreateLocked(2)
	if _, err := e.adjustParent(child, 1); err != nil {
		t.Fatalf("adjustParent: %v", err)
	}
	child.seq = 1
	child.parentSince = 10 // only snapshots >= 10 are inherited
	child.snaps = []uint64{20}
	if err := e.buildContext(child); err != nil {
		t.Fatalf("buildContext(child): %v", err)
	}

	want := []uint64{20, 15} // child's own snap first, then inherited >= 10
	if got := child.cachedContext.Snaps(); !reflect.DeepEqual(got, want) {
		t.Errorf("child Snaps() = %v, want %v", got, want)
	}
}

// TestRebuildSubtreeCascades covers a parent with two children: rebuilding
// the parent must cascade into both children's cached contexts.
func TestRebuildSubtreeCascades(t *testing.T) {
	e, _, _ := newTestEngine()
	e.mu.Lock()
	defer e.mu.Unlock()

	parent, _ := e.getOrCreateLocked(1)
	parent.seq = 1
	parent.snaps = []uint64{5}
	if err := e.buildContext(parent); err != nil {
		t.Fatalf("buildContext(parent): %v", err)
	}

	childA, _ := e.getOrCreateLocked(2)
	e.adjustParent(childA, 1)
	childA.seq = 1
	if err := e.buildContext(childA); err != nil {
		t.Fatalf("buildContext(childA): %v", err)
	}

	childB, _ := e.getOrCreateLocked(3)
	e.adjustParent(childB, 1)
	childB.seq = 1
	if err := e.buildContext(childB); err != nil {
		t.Fatalf("buildContext(childB): %v", err)
	}

	// Parent gains a new snapshot; a full rebuild must reach both children.
	parent.seq = 2
	parent.snaps = []uint64{5, 25}
	if err := e.rebuildSubtree(parent); err != nil {
		t.Fatalf("rebuildSubtree: %v", err)
	}

	want := []uint64{25, 5}
	if got := childA.cachedContext.Snaps(); !reflect.DeepEqual(got, want) {
		t.Errorf("childA Snaps() = %v, want %v", got, want)
	}
	if got := childB.cachedContext.Snaps(); !reflect.DeepEqual(got, want) {
		t.Errorf("childB Snaps() = %v, want %v", got, want)
	}
}

func TestBuildContextIdempotent(t *testing.T) {
	e, _, _ := newTestEngine()
	e.mu.Lock()
	defer e.mu.Unlock()

	r, _ := e.getOrCreateLocked(1)
	r.seq = 1
	r.snaps = []uint64{5}
	if err := e.buildContext(r); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	first := r.cachedContext
	if err := e.buildContext(r); err != nil {
		t.Fatalf("buildContext (second): %v", err)
	}
	if r.cachedContext != first {
		t.Errorf("buildContext rebuilt an already-current context")
	}
}
