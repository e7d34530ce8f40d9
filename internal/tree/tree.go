// Package tree implements the window placement model: an arena of
// container and leaf nodes addressed by stable handles, mutated only by
// the reactor.
package tree

import (
	"errors"
	"fmt"

	"github.com/glidewm/glidewm/internal/platform"
)

// Kind classifies a container node.
type Kind uint8

const (
	// SplitH arranges children left to right.
	SplitH Kind = iota
	// SplitV arranges children top to bottom.
	SplitV
	// Stack shows the selected child full size; the rest are hidden.
	Stack
	// Tab behaves like Stack; the distinction only matters to a bar
	// renderer, which glidewm does not own.
	Tab
)

func (k Kind) String() string {
	switch k {
	case SplitH:
		return "splith"
	case SplitV:
		return "splitv"
	case Stack:
		return "stack"
	case Tab:
		return "tab"
	default:
		return "unknown"
	}
}

// IsSplit reports whether children share the region by ratio.
func (k Kind) IsSplit() bool { return k == SplitH || k == SplitV }

// ParseKind converts a serialized kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "splith":
		return SplitH, nil
	case "splitv":
		return SplitV, nil
	case "stack":
		return Stack, nil
	case "tab":
		return Tab, nil
	}
	return 0, fmt.Errorf("unknown container kind %q", s)
}

// NodeID is a stable handle into the arena. The low bits address a
// slot, the high bits carry the slot's reuse generation, so a handle
// held across a removal never silently aliases a new node.
type NodeID uint64

// InvalidNode is the zero handle.
const InvalidNode NodeID = 0

func makeID(slot uint32, gen uint32) NodeID {
	return NodeID(uint64(gen)<<32 | uint64(slot) | 1<<31)
}

func (id NodeID) slot() uint32 { return uint32(id) &^ (1 << 31) }
func (id NodeID) gen() uint32  { return uint32(id >> 32) }

var (
	// ErrNotFound means the handle or window is not in the tree.
	ErrNotFound = errors.New("tree: node not found")
	// ErrDuplicate means the window is already tiled somewhere.
	ErrDuplicate = errors.New("tree: window already present")
	// ErrNotLeaf means the operation requires a leaf node.
	ErrNotLeaf = errors.New("tree: not a leaf")
	// ErrNotContainer means the operation requires a container node.
	ErrNotContainer = errors.New("tree: not a container")
	// ErrRoot means the operation may not be applied to the root.
	ErrRoot = errors.New("tree: operation not allowed on root")
)

type node struct {
	used     bool
	gen      uint32
	leaf     bool
	kind     Kind
	parent   NodeID
	children []NodeID
	ratios   []float64
	selected int
	window   platform.WindowID
}

// Tree is one workspace's placement model.
type Tree struct {
	nodes        []node
	free         []uint32
	root         NodeID
	minFraction  float64
	defaultRatio float64
	leaves       map[platform.WindowID]NodeID
}

// New returns a tree whose root is an empty horizontal split.
// minFraction is the smallest ratio any split child may be resized to.
// defaultRatio is the share a window inserted beside existing siblings
// receives; values outside (0, 1) give newcomers an equal share.
func New(minFraction, defaultRatio float64) *Tree {
	if minFraction <= 0 || minFraction >= 0.5 {
		minFraction = 0.05
	}
	t := &Tree{
		minFraction:  minFraction,
		defaultRatio: defaultRatio,
		leaves:       make(map[platform.WindowID]NodeID),
	}
	t.root = t.alloc()
	n := t.node(t.root)
	n.kind = SplitH
	return t
}

func (t *Tree) alloc() NodeID {
	if len(t.free) > 0 {
		slot := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		n := &t.nodes[slot]
		gen := n.gen + 1
		*n = node{used: true, gen: gen}
		return makeID(slot, gen)
	}
	t.nodes = append(t.nodes, node{used: true, gen: 1})
	return makeID(uint32(len(t.nodes)-1), 1)
}

func (t *Tree) release(id NodeID) {
	n := t.node(id)
	if n == nil {
		return
	}
	gen := n.gen
	*n = node{gen: gen}
	t.free = append(t.free, id.slot())
}

func (t *Tree) node(id NodeID) *node {
	slot := id.slot()
	if id == InvalidNode || int(slot) >= len(t.nodes) {
		return nil
	}
	n := &t.nodes[slot]
	if !n.used || n.gen != id.gen() {
		return nil
	}
	return n
}

// Root returns the root container handle.
func (t *Tree) Root() NodeID { return t.root }

// Valid reports whether the handle still addresses a live node.
func (t *Tree) Valid(id NodeID) bool { return t.node(id) != nil }

// IsLeaf reports whether the node holds a window.
func (t *Tree) IsLeaf(id NodeID) bool {
	n := t.node(id)
	return n != nil && n.leaf
}

// KindOf returns a container's kind.
func (t *Tree) KindOf(id NodeID) Kind {
	if n := t.node(id); n != nil {
		return n.kind
	}
	return SplitH
}

// Parent returns the parent handle, or InvalidNode for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.node(id); n != nil {
		return n.parent
	}
	return InvalidNode
}

// Children returns a copy of a container's ordered child handles.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.node(id)
	if n == nil || n.leaf {
		return nil
	}
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out
}

// Ratios returns a copy of a split container's child ratios.
func (t *Tree) Ratios(id NodeID) []float64 {
	n := t.node(id)
	if n == nil || n.leaf || !n.kind.IsSplit() {
		return nil
	}
	out := make([]float64, len(n.ratios))
	copy(out, n.ratios)
	return out
}

// Selected returns the index of the visible child of a stack or tab.
func (t *Tree) Selected(id NodeID) int {
	n := t.node(id)
	if n == nil || n.leaf {
		return 0
	}
	if n.selected >= len(n.children) {
		return 0
	}
	return n.selected
}

// WindowAt returns the window held by a leaf.
func (t *Tree) WindowAt(id NodeID) (platform.WindowID, bool) {
	n := t.node(id)
	if n == nil || !n.leaf {
		return 0, false
	}
	return n.window, true
}

// LeafFor returns the leaf currently holding the window.
func (t *Tree) LeafFor(win platform.WindowID) (NodeID, bool) {
	id, ok := t.leaves[win]
	return id, ok
}

// Len returns the number of tiled windows.
func (t *Tree) Len() int { return len(t.leaves) }

// Windows returns all tiled windows in depth-first child order. The
// order is defined entirely by the explicit child sequences, so it is
// stable across calls.
func (t *Tree) Windows() []platform.WindowID {
	out := make([]platform.WindowID, 0, len(t.leaves))
	var walk func(NodeID)
	walk = func(id NodeID) {
		n := t.node(id)
		if n == nil {
			return
		}
		if n.leaf {
			out = append(out, n.window)
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// VisibleWindows returns the windows that receive a non-zero frame:
// every split descendant, but only the selected child of each stack or
// tab. Order follows the explicit child sequences.
func (t *Tree) VisibleWindows() []platform.WindowID {
	var out []platform.WindowID
	var walk func(NodeID)
	walk = func(id NodeID) {
		n := t.node(id)
		if n == nil {
			return
		}
		if n.leaf {
			out = append(out, n.window)
			return
		}
		if !n.kind.IsSplit() {
			if len(n.children) > 0 {
				sel := n.selected
				if sel >= len(n.children) {
					sel = 0
				}
				walk(n.children[sel])
			}
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// InsertWindow places a window next to target. A leaf target gains the
// window as its immediate next sibling; a container target appends it
// as the last child; an invalid target falls back to the root. In a
// split parent the newcomer takes the default ratio share, its siblings
// shrinking proportionally.
func (t *Tree) InsertWindow(win platform.WindowID, target NodeID) (NodeID, error) {
	if _, ok := t.leaves[win]; ok {
		return InvalidNode, ErrDuplicate
	}
	parent := t.root
	index := -1
	if tn := t.node(target); tn != nil {
		if tn.leaf {
			parent = tn.parent
			index = t.childIndex(parent, target) + 1
		} else {
			parent = target
		}
	}
	leaf := t.alloc()
	ln := t.node(leaf)
	ln.leaf = true
	ln.window = win
	t.attach(parent, leaf, index)
	t.leaves[win] = leaf
	if t.defaultRatio > 0 && t.defaultRatio < 1 {
		if pn := t.node(parent); pn.kind.IsSplit() && len(pn.children) > 1 {
			_ = t.SetRatio(leaf, t.defaultRatio)
		}
	}
	return leaf, nil
}

// RemoveWindow detaches the window's leaf and prunes any containers
// left empty, collapsing redundant nesting on the way up.
func (t *Tree) RemoveWindow(win platform.WindowID) error {
	leaf, ok := t.leaves[win]
	if !ok {
		return ErrNotFound
	}
	parent := t.node(leaf).parent
	t.detach(leaf)
	t.release(leaf)
	delete(t.leaves, win)
	t.pruneUp(parent)
	return nil
}

// SwapWindows exchanges the windows held by two leaves, keeping both
// leaf positions and ratios in place.
func (t *Tree) SwapWindows(a, b platform.WindowID) error {
	la, ok := t.leaves[a]
	if !ok {
		return ErrNotFound
	}
	lb, ok := t.leaves[b]
	if !ok {
		return ErrNotFound
	}
	t.node(la).window = b
	t.node(lb).window = a
	t.leaves[a], t.leaves[b] = lb, la
	return nil
}

// MoveWindow detaches a window and re-inserts it as a child of the
// given container at index (clamped; negative appends).
func (t *Tree) MoveWindow(win platform.WindowID, container NodeID, index int) error {
	leaf, ok := t.leaves[win]
	if !ok {
		return ErrNotFound
	}
	cn := t.node(container)
	if cn == nil {
		return ErrNotFound
	}
	if cn.leaf {
		return ErrNotContainer
	}
	oldParent := t.node(leaf).parent
	t.detach(leaf)
	t.attach(container, leaf, index)
	t.pruneUp(oldParent)
	return nil
}

// SplitLeaf wraps a leaf in a new container of the given kind, so the
// next window inserted beside it shares the leaf's region. The new
// container inherits the leaf's ratio in its parent.
func (t *Tree) SplitLeaf(leaf NodeID, kind Kind) (NodeID, error) {
	ln := t.node(leaf)
	if ln == nil {
		return InvalidNode, ErrNotFound
	}
	if !ln.leaf {
		return InvalidNode, ErrNotLeaf
	}
	parent := ln.parent
	idx := t.childIndex(parent, leaf)
	container := t.alloc()
	// Re-fetch: alloc may have grown the arena.
	ln = t.node(leaf)
	cn := t.node(container)
	cn.kind = kind
	cn.parent = parent
	cn.children = []NodeID{leaf}
	if kind.IsSplit() {
		cn.ratios = []float64{1}
	}
	pn := t.node(parent)
	pn.children[idx] = container
	ln.parent = container
	// A single-child container under a same-kind parent would be
	// spliced right back out; allow it here and let the next insertion
	// establish the nesting before normalization sees it.
	return container, nil
}

// SetKind changes a container's kind, e.g. to turn a split into a
// stack. Ratios are reset when leaving or entering split layout.
func (t *Tree) SetKind(id NodeID, kind Kind) error {
	n := t.node(id)
	if n == nil {
		return ErrNotFound
	}
	if n.leaf {
		return ErrNotContainer
	}
	if n.kind == kind {
		return nil
	}
	wasSplit := n.kind.IsSplit()
	n.kind = kind
	switch {
	case kind.IsSplit() && !wasSplit:
		n.ratios = equalRatios(len(n.children))
	case !kind.IsSplit() && wasSplit:
		n.ratios = nil
		if n.selected >= len(n.children) {
			n.selected = 0
		}
	}
	t.collapse(id)
	return nil
}

// SetSelected chooses the visible child of a stack or tab container.
func (t *Tree) SetSelected(id NodeID, index int) error {
	n := t.node(id)
	if n == nil {
		return ErrNotFound
	}
	if n.leaf || n.kind.IsSplit() {
		return ErrNotContainer
	}
	if index < 0 || index >= len(n.children) {
		return fmt.Errorf("tree: selected index %d out of range", index)
	}
	n.selected = index
	return nil
}

// Reveal makes the window the selected child of every stack or tab
// ancestor, so focusing it also uncovers it. Returns true when any
// selection changed.
func (t *Tree) Reveal(win platform.WindowID) bool {
	leaf, ok := t.leaves[win]
	if !ok {
		return false
	}
	changed := false
	child := leaf
	for {
		n := t.node(child)
		if n == nil || n.parent == InvalidNode {
			break
		}
		pn := t.node(n.parent)
		if pn != nil && !pn.kind.IsSplit() {
			idx := t.childIndex(n.parent, child)
			if idx >= 0 && pn.selected != idx {
				pn.selected = idx
				changed = true
			}
		}
		child = n.parent
	}
	return changed
}

// SetRatio resizes one split child to the given ratio. The ratio is
// clamped so every sibling keeps at least the minimum fraction, and the
// remainder is redistributed among the siblings in proportion to their
// previous ratios.
func (t *Tree) SetRatio(child NodeID, ratio float64) error {
	cn := t.node(child)
	if cn == nil {
		return ErrNotFound
	}
	pn := t.node(cn.parent)
	if pn == nil {
		return ErrRoot
	}
	if !pn.kind.IsSplit() {
		return ErrNotContainer
	}
	idx := t.childIndex(cn.parent, child)
	n := len(pn.children)
	if n == 1 {
		pn.ratios[0] = 1
		return nil
	}
	maxRatio := 1 - float64(n-1)*t.minFraction
	if ratio < t.minFraction {
		ratio = t.minFraction
	}
	if ratio > maxRatio {
		ratio = maxRatio
	}
	oldRest := 1 - pn.ratios[idx]
	newRest := 1 - ratio
	for i := range pn.ratios {
		if i == idx {
			pn.ratios[i] = ratio
			continue
		}
		if oldRest <= 0 {
			pn.ratios[i] = newRest / float64(n-1)
		} else {
			pn.ratios[i] = pn.ratios[i] / oldRest * newRest
		}
	}
	t.clampRatios(pn)
	return nil
}

// AdjustRatio grows or shrinks one split child by delta.
func (t *Tree) AdjustRatio(child NodeID, delta float64) error {
	cn := t.node(child)
	if cn == nil {
		return ErrNotFound
	}
	pn := t.node(cn.parent)
	if pn == nil {
		return ErrRoot
	}
	if !pn.kind.IsSplit() {
		return ErrNotContainer
	}
	idx := t.childIndex(cn.parent, child)
	return t.SetRatio(child, pn.ratios[idx]+delta)
}

// MinFraction returns the configured minimum split fraction.
func (t *Tree) MinFraction() float64 { return t.minFraction }

func (t *Tree) childIndex(parent, child NodeID) int {
	pn := t.node(parent)
	if pn == nil {
		return -1
	}
	for i, c := range pn.children {
		if c == child {
			return i
		}
	}
	return -1
}

// attach inserts child into parent's sequence at index (clamped;
// negative appends), rescaling split ratios so the newcomer gets an
// equal share.
func (t *Tree) attach(parent, child NodeID, index int) {
	pn := t.node(parent)
	n := len(pn.children)
	if index < 0 || index > n {
		index = n
	}
	pn.children = append(pn.children, InvalidNode)
	copy(pn.children[index+1:], pn.children[index:])
	pn.children[index] = child
	t.node(child).parent = parent
	if pn.kind.IsSplit() {
		share := 1.0 / float64(n+1)
		scale := 1 - share
		pn.ratios = append(pn.ratios, 0)
		copy(pn.ratios[index+1:], pn.ratios[index:])
		pn.ratios[index] = share
		for i := range pn.ratios {
			if i != index {
				pn.ratios[i] *= scale
			}
		}
		t.clampRatios(pn)
	}
}

// detach removes child from its parent, rescaling the remaining split
// ratios back to a unit sum. It does not prune the parent.
func (t *Tree) detach(child NodeID) {
	cn := t.node(child)
	pn := t.node(cn.parent)
	if pn == nil {
		return
	}
	idx := t.childIndex(cn.parent, child)
	if idx < 0 {
		return
	}
	pn.children = append(pn.children[:idx], pn.children[idx+1:]...)
	if pn.kind.IsSplit() {
		removed := pn.ratios[idx]
		pn.ratios = append(pn.ratios[:idx], pn.ratios[idx+1:]...)
		rest := 1 - removed
		if rest <= 0 || len(pn.ratios) == 0 {
			pn.ratios = equalRatios(len(pn.children))
		} else {
			for i := range pn.ratios {
				pn.ratios[i] /= rest
			}
		}
		t.clampRatios(pn)
	}
	if pn.selected >= len(pn.children) && pn.selected > 0 {
		pn.selected = len(pn.children) - 1
	}
	cn.parent = InvalidNode
}

// pruneUp removes empty containers and collapses redundant nesting,
// walking toward the root from the given container.
func (t *Tree) pruneUp(id NodeID) {
	for id != InvalidNode {
		n := t.node(id)
		if n == nil {
			return
		}
		parent := n.parent
		if len(n.children) == 0 && id != t.root {
			t.detach(id)
			t.release(id)
			id = parent
			continue
		}
		t.collapse(id)
		id = parent
	}
}

// collapse splices a single-child container into a same-kind parent:
// the child takes the container's slot and ratio, so no redundant
// nesting survives a mutation.
func (t *Tree) collapse(id NodeID) {
	n := t.node(id)
	if n == nil || n.leaf || id == t.root || len(n.children) != 1 {
		return
	}
	pn := t.node(n.parent)
	if pn == nil || pn.kind != n.kind {
		return
	}
	parent := n.parent
	idx := t.childIndex(parent, id)
	child := n.children[0]
	pn.children[idx] = child
	t.node(child).parent = parent
	n.children = nil
	t.release(id)
}

func (t *Tree) clampRatios(pn *node) {
	n := len(pn.ratios)
	if n == 0 {
		return
	}
	var sum float64
	for i := range pn.ratios {
		if pn.ratios[i] < t.minFraction {
			pn.ratios[i] = t.minFraction
		}
		sum += pn.ratios[i]
	}
	for i := range pn.ratios {
		pn.ratios[i] /= sum
	}
}

func equalRatios(n int) []float64 {
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
