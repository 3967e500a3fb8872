package regiontree

// Each node in a tree is either a partial node which links to exactly one child per octant or
// quadrant, an empty leaf covering nothing, or a full leaf covering its whole cube. The value of
// each NodeType is also its 2-bit tag in the packed encoding.
const (
	PartialNode = NodeType(iota)
	EmptyNode
	FullNode
)

// NodeType represents the possible states of a node.
type NodeType uint8

func (t NodeType) String() string {
	switch t {
	case PartialNode:
		return "partial"
	case EmptyNode:
		return "empty"
	case FullNode:
		return "full"
	default:
		return "invalid"
	}
}

// Node is one cell of a tree. Nodes own their children and hold no reference to their parent.
type Node struct {
	nodeType NodeType
	children []*Node
}

func newFullNode() *Node {
	return &Node{nodeType: FullNode}
}

func newEmptyNode() *Node {
	return &Node{nodeType: EmptyNode}
}

func newLeafNode(t NodeType) *Node {
	return &Node{nodeType: t}
}

func newPartialNode(children []*Node) *Node {
	return &Node{nodeType: PartialNode, children: children}
}

// Type returns the node's state.
func (n *Node) Type() NodeType {
	return n.nodeType
}

// IsFull reports whether the node's whole cube is included.
func (n *Node) IsFull() bool {
	return n.nodeType == FullNode
}

// IsEmpty reports whether the node's whole cube is excluded.
func (n *Node) IsEmpty() bool {
	return n.nodeType == EmptyNode
}

// IsPartial reports whether the node is subdivided.
func (n *Node) IsPartial() bool {
	return n.nodeType == PartialNode
}

// Children returns the node's children, nil for leaves. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// setLeaf turns n into a leaf of type t, dropping any children.
func (n *Node) setLeaf(t NodeType) {
	n.nodeType = t
	n.children = nil
}

// split materializes a leaf into fanout children of the same type.
func (n *Node) split(fanout int) {
	if n.nodeType == PartialNode {
		return
	}
	children := make([]*Node, fanout)
	for i := range children {
		children[i] = newLeafNode(n.nodeType)
	}
	n.nodeType = PartialNode
	n.children = children
}

// collapse replaces a partial node whose children are all full or all empty leaves with that
// leaf. It reports whether the node changed.
func (n *Node) collapse() bool {
	if n.nodeType != PartialNode || len(n.children) == 0 {
		return false
	}
	first := n.children[0].nodeType
	if first == PartialNode {
		return false
	}
	for _, child := range n.children[1:] {
		if child.nodeType != first {
			return false
		}
	}
	n.setLeaf(first)
	return true
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n.nodeType != PartialNode {
		return newLeafNode(n.nodeType)
	}
	children := make([]*Node, len(n.children))
	for i, child := range n.children {
		children[i] = child.Clone()
	}
	return newPartialNode(children)
}

// Equal reports whether two subtrees have the same shape and leaf states.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.nodeType != o.nodeType || len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}
