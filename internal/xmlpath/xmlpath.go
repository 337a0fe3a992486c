// Package xmlpath provides declarative child-path lookups over an xmlquery
// node tree. It knows nothing about any particular document schema.
package xmlpath

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// valueTag wraps scalar values in many structured filings (<x><value>1</value></x>).
const valueTag = "value"

// Lookup follows path from root through direct element children matched by
// local name and returns the node at the end of the path. An empty path
// returns root itself.
func Lookup(root *xmlquery.Node, path ...string) (*xmlquery.Node, bool) {
	if root == nil {
		return nil, false
	}
	node := root
	for _, name := range path {
		node = firstChild(node, name)
		if node == nil {
			return nil, false
		}
	}
	return node, true
}

// Children returns the direct element children of node named name, in
// document order.
func Children(node *xmlquery.Node, name string) []*xmlquery.Node {
	if node == nil {
		return nil
	}
	var out []*xmlquery.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			out = append(out, child)
		}
	}
	return out
}

// Text returns the trimmed text of node's <value> child when present, and
// the trimmed text of node otherwise.
func Text(node *xmlquery.Node) string {
	if node == nil {
		return ""
	}
	if value := firstChild(node, valueTag); value != nil {
		return strings.TrimSpace(value.InnerText())
	}
	return strings.TrimSpace(node.InnerText())
}

// LookupText combines Lookup and Text; ok is false when the path is absent.
func LookupText(root *xmlquery.Node, path ...string) (string, bool) {
	node, ok := Lookup(root, path...)
	if !ok {
		return "", false
	}
	return Text(node), true
}

func firstChild(node *xmlquery.Node, name string) *xmlquery.Node {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == name {
			return child
		}
	}
	return nil
}
