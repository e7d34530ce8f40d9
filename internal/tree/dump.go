package tree

import "github.com/glidewm/glidewm/internal/platform"

// NodeDump is a detached, serializable copy of a subtree. It is what
// the IPC tree query and the layout snapshot file carry.
type NodeDump struct {
	Kind     string      `json:"kind,omitempty" yaml:"kind,omitempty"`
	Ratios   []float64   `json:"ratios,omitempty" yaml:"ratios,omitempty"`
	Selected int         `json:"selected,omitempty" yaml:"selected,omitempty"`
	Window   uint32      `json:"window,omitempty" yaml:"window,omitempty"`
	App      string      `json:"app,omitempty" yaml:"app,omitempty"`
	Children []*NodeDump `json:"children,omitempty" yaml:"children,omitempty"`
}

// Dump copies the whole tree into a NodeDump. apps optionally maps
// windows to their application identity for annotation.
func (t *Tree) Dump(apps map[platform.WindowID]platform.AppID) *NodeDump {
	return t.dump(t.root, apps)
}

// FromDump rebuilds a tree from a saved shape. resolve maps each saved
// leaf to a live window; unresolved leaves are dropped, and containers
// emptied by the drops disappear with them. Saved ratios apply only
// where every child of a container resolved.
func FromDump(d *NodeDump, minFraction, defaultRatio float64, resolve func(*NodeDump) (platform.WindowID, bool)) *Tree {
	t := New(minFraction, defaultRatio)
	if d == nil {
		return t
	}
	if kind, err := ParseKind(d.Kind); err == nil {
		t.node(t.root).kind = kind
	}
	for _, c := range d.Children {
		t.build(t.root, c, resolve)
	}
	t.restoreRatios(t.root, d)
	t.normalize(t.root)
	return t
}

func (t *Tree) build(parent NodeID, d *NodeDump, resolve func(*NodeDump) (platform.WindowID, bool)) bool {
	if d.Kind == "" {
		win, ok := resolve(d)
		if !ok {
			return false
		}
		if _, dup := t.leaves[win]; dup {
			return false
		}
		leaf := t.alloc()
		ln := t.node(leaf)
		ln.leaf = true
		ln.window = win
		t.attach(parent, leaf, -1)
		t.leaves[win] = leaf
		return true
	}
	kind, err := ParseKind(d.Kind)
	if err != nil {
		kind = SplitH
	}
	id := t.alloc()
	t.node(id).kind = kind
	t.attach(parent, id, -1)
	added := false
	for _, c := range d.Children {
		if t.build(id, c, resolve) {
			added = true
		}
	}
	if !added {
		t.detach(id)
		t.release(id)
		return false
	}
	// Re-fetch: child allocations may have grown the arena.
	n := t.node(id)
	if d.Selected > 0 && d.Selected < len(n.children) {
		n.selected = d.Selected
	}
	return true
}

func (t *Tree) restoreRatios(id NodeID, d *NodeDump) {
	n := t.node(id)
	if n == nil || n.leaf || len(n.children) != len(d.Children) {
		return
	}
	if n.kind.IsSplit() && len(d.Ratios) == len(n.children) {
		copy(n.ratios, d.Ratios)
		t.clampRatios(n)
	}
	for i, c := range n.children {
		t.restoreRatios(c, d.Children[i])
	}
}

// normalize re-establishes the collapse invariant bottom-up after a
// rebuild that may have left single-child chains behind.
func (t *Tree) normalize(id NodeID) {
	n := t.node(id)
	if n == nil || n.leaf {
		return
	}
	for _, c := range append([]NodeID(nil), n.children...) {
		t.normalize(c)
	}
	t.collapse(id)
}

func (t *Tree) dump(id NodeID, apps map[platform.WindowID]platform.AppID) *NodeDump {
	n := t.node(id)
	if n == nil {
		return nil
	}
	if n.leaf {
		d := &NodeDump{Window: uint32(n.window)}
		if apps != nil {
			d.App = string(apps[n.window])
		}
		return d
	}
	d := &NodeDump{
		Kind:     n.kind.String(),
		Selected: n.selected,
	}
	if n.kind.IsSplit() {
		d.Ratios = append([]float64(nil), n.ratios...)
	}
	for _, c := range n.children {
		if cd := t.dump(c, apps); cd != nil {
			d.Children = append(d.Children, cd)
		}
	}
	return d
}
