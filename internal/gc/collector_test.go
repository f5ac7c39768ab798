package gc

import "testing"

func newTestCollector() *Collector {
	return NewCollector()
}

func TestNewCollectorStartsInPause(t *testing.T) {
	c := newTestCollector()
	if c.State() != StatePause {
		t.Errorf("Expected initial state Pause, got %v", c.State())
	}
	if c.Kind() != KindIncremental {
		t.Errorf("Expected initial kind incremental, got %v", c.Kind())
	}
}

func TestMarkRootsReachesTable(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	child := NewTable(c)
	root.Hash[ObjectValue(NewString(c, "k"))] = ObjectValue(child)
	c.linkRoot(&root.Header)
	c.linkRoot(&child.Header)

	r := Roots{Named: []GCObject{root}}
	c.enterPropagate(r)
	c.propagateAll()

	if !child.Header.IsBlack() {
		t.Errorf("Expected reachable table to be black after propagation, got marked=%v", child.Header.marked)
	}
}

func TestUnreachableObjectIsSweptAway(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	garbage := NewTable(c)
	c.linkRoot(&root.Header)
	c.linkRoot(&garbage.Header)

	r := Roots{Named: []GCObject{root}}
	c.FullGC(r)

	found := false
	for h := c.Root(); h != nil; h = h.next {
		if h.Self() == garbage {
			found = true
		}
	}
	if found {
		t.Errorf("Expected unreachable table to be swept, but it is still linked")
	}
}

func TestWriteBarrierForwardPreventsBlackToWhiteEdge(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.enterPropagate(r)
	c.propagateAll() // root 现在是黑色，gray 队列已空

	late := NewTable(c)
	c.linkRoot(&late.Header)
	if !root.Header.IsBlack() || !late.Header.IsWhite() {
		t.Fatalf("precondition failed: root black=%v late white=%v", root.Header.IsBlack(), late.Header.IsWhite())
	}

	root.Hash[ObjectValue(NewString(c, "late"))] = ObjectValue(late)
	c.BarrierForward(root, late)

	if late.Header.IsWhite() {
		t.Errorf("Expected forward barrier to move the white object across the frontier")
	}
}

func TestWriteBarrierBackRequeuesTable(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.enterPropagate(r)
	c.propagateAll()

	if !root.Header.IsBlack() {
		t.Fatalf("precondition failed: root should be black")
	}
	c.BarrierBack(root)
	if !root.Header.IsGray() {
		t.Errorf("Expected back barrier to turn the table gray again, got marked=%v", root.Header.marked)
	}
	if c.grayAgain == nil {
		t.Errorf("Expected table to be queued on grayagain")
	}
}

func TestFullGCRunsToCompletion(t *testing.T) {
	c := newTestCollector()
	root := NewTable(c)
	c.linkRoot(&root.Header)
	r := Roots{Named: []GCObject{root}}
	c.FullGC(r)
	if c.State() != StatePause {
		t.Errorf("Expected FullGC to return to Pause, got %v", c.State())
	}
}
