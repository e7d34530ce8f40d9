package tree

import (
	"math"
	"testing"

	"github.com/glidewm/glidewm/internal/platform"
)

func mustInsert(t *testing.T, tr *Tree, win platform.WindowID, target NodeID) NodeID {
	t.Helper()
	leaf, err := tr.InsertWindow(win, target)
	if err != nil {
		t.Fatalf("InsertWindow(%d): %v", win, err)
	}
	return leaf
}

func ratiosNear(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestInsertWindow_AppendsToRoot(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	mustInsert(t, tr, 3, InvalidNode)

	wins := tr.Windows()
	if len(wins) != 3 || wins[0] != 1 || wins[1] != 2 || wins[2] != 3 {
		t.Fatalf("windows = %v, want [1 2 3]", wins)
	}
	want := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, want) {
		t.Fatalf("root ratios = %v, want %v", got, want)
	}
}

func TestInsertWindow_BesideLeafBecomesNextSibling(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	mustInsert(t, tr, 3, a)

	wins := tr.Windows()
	if len(wins) != 3 || wins[0] != 1 || wins[1] != 3 || wins[2] != 2 {
		t.Fatalf("windows = %v, want [1 3 2]", wins)
	}
}

func TestInsertWindow_DuplicateRejected(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	if _, err := tr.InsertWindow(1, InvalidNode); err != ErrDuplicate {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicate", err)
	}
}

func TestInsertWindow_DefaultRatioGivesNewcomerItsShare(t *testing.T) {
	tr := New(0.05, 0.6)
	mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, []float64{0.4, 0.6}) {
		t.Fatalf("ratios after second insert = %v, want [0.4 0.6]", got)
	}

	mustInsert(t, tr, 3, InvalidNode)
	got := tr.Ratios(tr.Root())
	// The newcomer claims 0.6; the incumbents split the rest in their
	// previous 0.4:0.6 proportion.
	if !ratiosNear(got, []float64{0.16, 0.24, 0.6}) {
		t.Fatalf("ratios after third insert = %v, want [0.16 0.24 0.6]", got)
	}
}

func TestRemoveWindow_RescalesSiblings(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	mustInsert(t, tr, 3, InvalidNode)
	if err := tr.RemoveWindow(2); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	want := []float64{0.5, 0.5}
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, want) {
		t.Fatalf("ratios after remove = %v, want %v", got, want)
	}
	if tr.Len() != 2 {
		t.Fatalf("len = %d, want 2", tr.Len())
	}
}

func TestRemoveWindow_NotFound(t *testing.T) {
	tr := New(0.05, 0)
	if err := tr.RemoveWindow(99); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveWindow_PrunesEmptyContainer(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, SplitV)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)

	if err := tr.RemoveWindow(1); err != nil {
		t.Fatalf("RemoveWindow(1): %v", err)
	}
	if err := tr.RemoveWindow(3); err != nil {
		t.Fatalf("RemoveWindow(3): %v", err)
	}
	if tr.Valid(wrap) {
		t.Fatalf("emptied container should have been pruned")
	}
	kids := tr.Children(tr.Root())
	if len(kids) != 1 {
		t.Fatalf("root children = %d, want 1", len(kids))
	}
	if win, ok := tr.WindowAt(kids[0]); !ok || win != 2 {
		t.Fatalf("survivor = %d ok=%v, want window 2", win, ok)
	}
}

func TestRemoveWindow_CollapsesRedundantNesting(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, SplitH)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)

	// Dropping window 3 leaves wrap with one child under a same-kind
	// parent, so the leaf must be spliced back into the root.
	if err := tr.RemoveWindow(3); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	if tr.Valid(wrap) {
		t.Fatalf("single-child same-kind container should collapse")
	}
	leaf, ok := tr.LeafFor(1)
	if !ok {
		t.Fatalf("window 1 lost its leaf")
	}
	if tr.Parent(leaf) != tr.Root() {
		t.Fatalf("leaf should hang directly off the root after collapse")
	}
}

func TestSplitLeaf_InheritsRatio(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	if err := tr.SetRatio(a, 0.7); err != nil {
		t.Fatalf("SetRatio: %v", err)
	}

	wrap, err := tr.SplitLeaf(a, SplitV)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	if tr.KindOf(wrap) != SplitV {
		t.Fatalf("kind = %v, want SplitV", tr.KindOf(wrap))
	}
	want := []float64{0.7, 0.3}
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, want) {
		t.Fatalf("root ratios = %v, want %v", got, want)
	}
	mustInsert(t, tr, 3, wrap)
	if got := tr.Ratios(wrap); !ratiosNear(got, []float64{0.5, 0.5}) {
		t.Fatalf("wrap ratios = %v, want [0.5 0.5]", got)
	}
}

func TestSplitLeaf_RejectsContainer(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	if _, err := tr.SplitLeaf(tr.Root(), SplitV); err != ErrNotLeaf {
		t.Fatalf("err = %v, want ErrNotLeaf", err)
	}
}

func TestSplitLeaf_ReparentsLeafWhenArenaGrows(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	mustInsert(t, tr, 3, InvalidNode)

	// Root plus three leaves leave the arena at capacity; the container
	// allocation below has to grow it.
	wrap, err := tr.SplitLeaf(a, SplitV)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	if got := tr.Parent(a); got != wrap {
		t.Fatalf("Parent(leaf) = %v, want new container %v", got, wrap)
	}
	kids := tr.Children(wrap)
	if len(kids) != 1 || kids[0] != a {
		t.Fatalf("container children = %v, want [%v]", kids, a)
	}
	mustInsert(t, tr, 4, wrap)
	if wins := tr.Windows(); len(wins) != 4 {
		t.Fatalf("windows = %v, want four", wins)
	}
}

func TestSetRatio_ClampsAndRedistributes(t *testing.T) {
	tr := New(0.1, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	mustInsert(t, tr, 3, InvalidNode)

	if err := tr.SetRatio(a, 0.99); err != nil {
		t.Fatalf("SetRatio: %v", err)
	}
	got := tr.Ratios(tr.Root())
	// With three children and min 0.1 the largest any child can claim
	// is 0.8, leaving each sibling its floor.
	if !ratiosNear(got, []float64{0.8, 0.1, 0.1}) {
		t.Fatalf("ratios = %v, want [0.8 0.1 0.1]", got)
	}

	if err := tr.SetRatio(a, 0.01); err != nil {
		t.Fatalf("SetRatio: %v", err)
	}
	got = tr.Ratios(tr.Root())
	if math.Abs(got[0]-0.1) > 1e-9 {
		t.Fatalf("ratio[0] = %v, want floor 0.1", got[0])
	}
	var sum float64
	for _, r := range got {
		sum += r
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("ratios sum = %v, want 1", sum)
	}
}

func TestSetRatio_RejectsStackChild(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, a)
	if err := tr.SetKind(tr.Root(), Stack); err != nil {
		t.Fatalf("SetKind: %v", err)
	}
	leaf, _ := tr.LeafFor(1)
	if err := tr.SetRatio(leaf, 0.5); err != ErrNotContainer {
		t.Fatalf("err = %v, want ErrNotContainer", err)
	}
}

func TestAdjustRatio_MovesByDelta(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	if err := tr.AdjustRatio(a, 0.1); err != nil {
		t.Fatalf("AdjustRatio: %v", err)
	}
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, []float64{0.6, 0.4}) {
		t.Fatalf("ratios = %v, want [0.6 0.4]", got)
	}
}

func TestSetKind_SplitToStackDropsRatios(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	if err := tr.SetKind(tr.Root(), Stack); err != nil {
		t.Fatalf("SetKind: %v", err)
	}
	if tr.Ratios(tr.Root()) != nil {
		t.Fatalf("stack container should have no ratios")
	}
	if err := tr.SetKind(tr.Root(), SplitV); err != nil {
		t.Fatalf("SetKind back: %v", err)
	}
	if got := tr.Ratios(tr.Root()); !ratiosNear(got, []float64{0.5, 0.5}) {
		t.Fatalf("ratios after reset = %v, want [0.5 0.5]", got)
	}
}

func TestSwapWindows_KeepsLeafPositions(t *testing.T) {
	tr := New(0.05, 0)
	la := mustInsert(t, tr, 1, InvalidNode)
	lb := mustInsert(t, tr, 2, InvalidNode)
	if err := tr.SwapWindows(1, 2); err != nil {
		t.Fatalf("SwapWindows: %v", err)
	}
	if win, _ := tr.WindowAt(la); win != 2 {
		t.Fatalf("first leaf holds %d, want 2", win)
	}
	if win, _ := tr.WindowAt(lb); win != 1 {
		t.Fatalf("second leaf holds %d, want 1", win)
	}
	if got, _ := tr.LeafFor(1); got != lb {
		t.Fatalf("LeafFor(1) = %v, want %v", got, lb)
	}
}

func TestMoveWindow_ReparentsAndPrunesOldSpot(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, SplitV)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)

	if err := tr.MoveWindow(3, tr.Root(), 0); err != nil {
		t.Fatalf("MoveWindow: %v", err)
	}
	wins := tr.Windows()
	if len(wins) != 3 || wins[0] != 3 {
		t.Fatalf("windows = %v, want 3 first", wins)
	}
	// wrap shrank to one child under a same-kind check fails (SplitV under
	// SplitH), so it survives with the lone leaf.
	leaf, _ := tr.LeafFor(1)
	if !tr.Valid(tr.Parent(leaf)) {
		t.Fatalf("window 1 lost its container")
	}
}

func TestSetSelected_ValidatesRange(t *testing.T) {
	tr := New(0.05, 0)
	mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	if err := tr.SetKind(tr.Root(), Tab); err != nil {
		t.Fatalf("SetKind: %v", err)
	}
	if err := tr.SetSelected(tr.Root(), 1); err != nil {
		t.Fatalf("SetSelected: %v", err)
	}
	if got := tr.Selected(tr.Root()); got != 1 {
		t.Fatalf("selected = %d, want 1", got)
	}
	if err := tr.SetSelected(tr.Root(), 2); err == nil {
		t.Fatalf("out-of-range selection should fail")
	}
}

func TestReveal_SelectsAlongAncestry(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, Stack)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)
	if err := tr.SetSelected(wrap, 1); err != nil {
		t.Fatalf("SetSelected: %v", err)
	}

	if !tr.Reveal(1) {
		t.Fatalf("Reveal(1) should report a change")
	}
	if got := tr.Selected(wrap); got != 0 {
		t.Fatalf("selected = %d, want 0 after reveal", got)
	}
	if tr.Reveal(1) {
		t.Fatalf("second Reveal should be a no-op")
	}
}

func TestVisibleWindows_StackShowsOnlySelected(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, Stack)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)
	if err := tr.SetSelected(wrap, 1); err != nil {
		t.Fatalf("SetSelected: %v", err)
	}

	vis := tr.VisibleWindows()
	if len(vis) != 2 || vis[0] != 3 || vis[1] != 2 {
		t.Fatalf("visible = %v, want [3 2]", vis)
	}
	all := tr.Windows()
	if len(all) != 3 {
		t.Fatalf("all windows = %v, want three", all)
	}
}

func TestNodeID_StaleHandleAfterReuse(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	if err := tr.RemoveWindow(1); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	b := mustInsert(t, tr, 2, InvalidNode)
	if a == b {
		t.Fatalf("reused slot must carry a new generation")
	}
	if tr.Valid(a) {
		t.Fatalf("stale handle should not address the reused slot")
	}
	if !tr.Valid(b) {
		t.Fatalf("fresh handle should be valid")
	}
}

func TestDump_RoundTripsShape(t *testing.T) {
	tr := New(0.05, 0)
	a := mustInsert(t, tr, 1, InvalidNode)
	mustInsert(t, tr, 2, InvalidNode)
	wrap, err := tr.SplitLeaf(a, SplitV)
	if err != nil {
		t.Fatalf("SplitLeaf: %v", err)
	}
	mustInsert(t, tr, 3, wrap)
	if err := tr.SetRatio(wrap, 0.7); err != nil {
		t.Fatalf("SetRatio: %v", err)
	}

	d := tr.Dump(map[platform.WindowID]platform.AppID{1: "term", 2: "browser"})
	if d.Kind != "splith" || len(d.Children) != 2 {
		t.Fatalf("dump root = %+v", d)
	}
	if d.Children[0].Kind != "splitv" || len(d.Children[0].Children) != 2 {
		t.Fatalf("dump wrap = %+v", d.Children[0])
	}
	if d.Children[1].Window != 2 || d.Children[1].App != "browser" {
		t.Fatalf("dump leaf = %+v", d.Children[1])
	}

	rebuilt := FromDump(d, 0.05, 0, func(nd *NodeDump) (platform.WindowID, bool) {
		return platform.WindowID(nd.Window), true
	})
	if got := rebuilt.Windows(); len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 2 {
		t.Fatalf("rebuilt windows = %v, want [1 3 2]", got)
	}
	if got := rebuilt.Ratios(rebuilt.Root()); !ratiosNear(got, tr.Ratios(tr.Root())) {
		t.Fatalf("rebuilt ratios = %v, want %v", got, tr.Ratios(tr.Root()))
	}
}

func TestFromDump_DropsUnresolvedLeavesAndEmptyContainers(t *testing.T) {
	d := &NodeDump{
		Kind: "splith",
		Children: []*NodeDump{
			{Window: 1},
			{Kind: "splitv", Children: []*NodeDump{{Window: 2}, {Window: 3}}},
		},
	}
	rebuilt := FromDump(d, 0.05, 0, func(nd *NodeDump) (platform.WindowID, bool) {
		if nd.Window == 1 {
			return 1, true
		}
		return 0, false
	})
	if got := rebuilt.Windows(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("windows = %v, want [1]", got)
	}
	kids := rebuilt.Children(rebuilt.Root())
	if len(kids) != 1 {
		t.Fatalf("root children = %d, want 1 after dropping empty split", len(kids))
	}
}

func TestFromDump_CollapsesSingleChildChains(t *testing.T) {
	d := &NodeDump{
		Kind: "splith",
		Children: []*NodeDump{
			{Kind: "splith", Children: []*NodeDump{{Window: 1}, {Window: 2}}},
		},
	}
	rebuilt := FromDump(d, 0.05, 0, func(nd *NodeDump) (platform.WindowID, bool) {
		return platform.WindowID(nd.Window), true
	})
	leaf, ok := rebuilt.LeafFor(1)
	if !ok {
		t.Fatalf("window 1 missing")
	}
	if rebuilt.Parent(leaf) != rebuilt.Root() {
		t.Fatalf("redundant same-kind nesting should collapse into the root")
	}
}
