// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package footer

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/parquet-go/parquet-go/format"
)

// schemaNode is one element of the flattened Parquet schema with its
// children reattached.
type schemaNode struct {
	elem     format.SchemaElement
	children []*schemaNode
}

func buildSchemaTree(elems []format.SchemaElement) (*schemaNode, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedSchema)
	}
	root, next, err := buildSchemaNode(elems, 0)
	if err != nil {
		return nil, err
	}
	if next != len(elems) {
		return nil, fmt.Errorf("%w: %d trailing elements after root", ErrMalformedSchema, len(elems)-next)
	}
	return root, nil
}

func buildSchemaNode(elems []format.SchemaElement, i int) (*schemaNode, int, error) {
	if i >= len(elems) {
		return nil, i, fmt.Errorf("%w: element %d missing", ErrMalformedSchema, i)
	}
	n := &schemaNode{elem: elems[i]}
	if n.elem.NumChildren < 0 {
		return nil, i, fmt.Errorf("%w: negative child count on %q", ErrMalformedSchema, n.elem.Name)
	}
	i++
	for c := 0; c < int(n.elem.NumChildren); c++ {
		child, next, err := buildSchemaNode(elems, i)
		if err != nil {
			return nil, next, err
		}
		n.children = append(n.children, child)
		i = next
	}
	return n, i, nil
}

func (n *schemaNode) isGroup() bool {
	return n.elem.Type == nil
}

func (n *schemaNode) child(name string) *schemaNode {
	for _, c := range n.children {
		if c.elem.Name == name {
			return c
		}
	}
	return nil
}

func (n *schemaNode) clone() *schemaNode {
	c := &schemaNode{elem: n.elem}
	for _, child := range n.children {
		c.children = append(c.children, child.clone())
	}
	return c
}

func (n *schemaNode) flatten(out []format.SchemaElement) []format.SchemaElement {
	e := n.elem
	if n.isGroup() {
		e.NumChildren = int32(len(n.children))
	}
	out = append(out, e)
	for _, c := range n.children {
		out = c.flatten(out)
	}
	return out
}

func (n *schemaNode) leafCount() int {
	if !n.isGroup() {
		return 1
	}
	count := 0
	for _, c := range n.children {
		count += c.leafCount()
	}
	return count
}

// union folds src into n. Fields present in both must be defined the same
// way; fields only in src are appended in src order. The root's own
// attributes are taken from n.
func (n *schemaNode) union(src *schemaNode, path []string, isRoot bool) error {
	if !isRoot && !sameDefinition(n.elem, src.elem) {
		return fmt.Errorf("%w: field %q is defined differently", ErrIncompatibleSchema, strings.Join(path, "."))
	}
	if n.isGroup() != src.isGroup() {
		return fmt.Errorf("%w: field %q is a group in one schema only", ErrIncompatibleSchema, strings.Join(path, "."))
	}
	for _, sc := range src.children {
		dc := n.child(sc.elem.Name)
		if dc == nil {
			n.children = append(n.children, sc.clone())
			continue
		}
		if err := dc.union(sc, append(path, sc.elem.Name), false); err != nil {
			return err
		}
	}
	return nil
}

func sameDefinition(a, b format.SchemaElement) bool {
	a.NumChildren, b.NumChildren = 0, 0
	return reflect.DeepEqual(a, b)
}

// FormatSchema renders the schema of md as a Parquet message definition.
func FormatSchema(md *format.FileMetaData) (string, error) {
	root, err := buildSchemaTree(md.Schema)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "message %s {\n", root.elem.Name)
	for _, c := range root.children {
		c.format(&sb, 1)
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

func (n *schemaNode) format(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	repetition := "required"
	if n.elem.RepetitionType != nil {
		repetition = strings.ToLower(n.elem.RepetitionType.String())
	}

	if n.isGroup() {
		fmt.Fprintf(sb, "%s%s group %s", indent, repetition, n.elem.Name)
		if n.elem.LogicalType != nil {
			fmt.Fprintf(sb, " (%s)", n.elem.LogicalType.String())
		}
		sb.WriteString(" {\n")
		for _, c := range n.children {
			c.format(sb, depth+1)
		}
		fmt.Fprintf(sb, "%s}\n", indent)
		return
	}

	fmt.Fprintf(sb, "%s%s %s %s", indent, repetition, strings.ToLower(n.elem.Type.String()), n.elem.Name)
	if n.elem.LogicalType != nil {
		fmt.Fprintf(sb, " (%s)", n.elem.LogicalType.String())
	}
	sb.WriteString(";\n")
}
