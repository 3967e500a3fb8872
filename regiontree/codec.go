package regiontree

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"
)

// maxDecodeDepth bounds recursion on hostile input. No valid tree is deeper than the number of
// bits in a coordinate.
const maxDecodeDepth = 64

// fullTagByte is one byte of four full tags.
const fullTagByte = byte(FullNode)<<6 | byte(FullNode)<<4 | byte(FullNode)<<2 | byte(FullNode)

// DecodeNode parses a packed depth-first stream into a node. It never fails: any position the
// stream runs out before resolving decodes as an empty leaf.
func DecodeNode(kind Kind, data []byte) *Node {
	n, err := decodeNode(kind, bytes.NewReader(data), PartialNode, 0)
	if err != nil {
		// bytes.Reader only reports io.EOF, which decodeNode absorbs.
		return newEmptyNode()
	}
	return n
}

// ReadNode is DecodeNode over a reader. A stream that ends early is not an error; any other
// read failure is returned.
func ReadNode(kind Kind, r io.Reader) (*Node, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return decodeNode(kind, br, PartialNode, 0)
}

func decodeNode(kind Kind, r io.ByteReader, parentTag NodeType, depth int) (*Node, error) {
	switch parentTag {
	case FullNode:
		return newFullNode(), nil
	case EmptyNode:
		return newEmptyNode(), nil
	}
	if depth >= maxDecodeDepth {
		return newEmptyNode(), nil
	}

	tags := make([]NodeType, 0, kind.Fanout())
	for i := 0; i < kind.BytesPerNode(); i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return newEmptyNode(), nil
			}
			return nil, pkgerrors.Wrap(err, "reading tree encoding")
		}
		tags = append(tags, unpackTags(b)...)
	}

	children := make([]*Node, len(tags))
	for i, tag := range tags {
		child, err := decodeNode(kind, r, tag, depth+1)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	n := newPartialNode(children)
	n.collapse()
	return n, nil
}

// unpackTags splits a byte into four tags, high bits first. The unused pattern 11 reads as a
// partial node.
func unpackTags(b byte) []NodeType {
	tags := make([]NodeType, 4)
	for i := 0; i < 4; i++ {
		tag := NodeType(b >> (6 - 2*i) & 3)
		if tag > FullNode {
			tag = PartialNode
		}
		tags[i] = tag
	}
	return tags
}

func packTags(children []*Node) byte {
	var b byte
	for i, child := range children {
		b |= byte(child.nodeType) << (6 - 2*i)
	}
	return b
}

// EncodeNode writes the packed tags of a partial node's children followed by the encodings of
// its partial children, pre-order. Leaves write nothing.
func EncodeNode(kind Kind, n *Node, w io.ByteWriter) error {
	if n.nodeType != PartialNode {
		return nil
	}
	if len(n.children) != kind.Fanout() {
		return pkgerrors.Wrapf(ErrInvariantViolation, "partial %s node has %d children", kind, len(n.children))
	}
	for i := 0; i < len(n.children); i += 4 {
		if err := w.WriteByte(packTags(n.children[i : i+4])); err != nil {
			return err
		}
	}
	for _, child := range n.children {
		if err := EncodeNode(kind, child, w); err != nil {
			return err
		}
	}
	return nil
}

// encodeRoot is EncodeNode for a tree root. A full root is written as one partial node with all
// full children so that it does not read back as empty.
func encodeRoot(kind Kind, root *Node, w io.ByteWriter) error {
	if root.IsFull() {
		for i := 0; i < kind.BytesPerNode(); i++ {
			if err := w.WriteByte(fullTagByte); err != nil {
				return err
			}
		}
		return nil
	}
	return EncodeNode(kind, root, w)
}
