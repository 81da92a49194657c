// Package xmldoc is a small query layer over HL7 v3 XML documents. Every
// element and attribute is re-prefixed from its namespace URI, so XPath
// expressions can use the cda, xsi and qdm prefixes regardless of how the
// source document declared its namespaces.
package xmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Namespace URIs understood by the query layer.
const (
	NamespaceCDA = "urn:hl7-org:v3"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceQDM = "urn:hhs-qdm:hqmf-r2-extensions:v1"
)

// Namespaces maps query prefixes to namespace URIs.
var Namespaces = map[string]string{
	"cda": NamespaceCDA,
	"xsi": NamespaceXSI,
	"qdm": NamespaceQDM,
}

var prefixByURI = func() map[string]string {
	m := make(map[string]string, len(Namespaces))
	for prefix, uri := range Namespaces {
		m[uri] = prefix
	}
	return m
}()

// compiled caches XPath expressions. Paths are package constants of the
// callers or entries of the template table, so the cache stays small.
var compiled sync.Map

func compile(path string) *xpath.Expr {
	expr, err := Compile(path)
	if err != nil {
		panic(err.Error())
	}
	return expr
}

// Compile parses path and caches the expression. Query methods panic on a
// path Compile rejects; check paths read from configuration with it first.
func Compile(path string) (*xpath.Expr, error) {
	if expr, ok := compiled.Load(path); ok {
		return expr.(*xpath.Expr), nil
	}
	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("xmldoc: invalid path %q: %w", path, err)
	}
	compiled.Store(path, expr)
	return expr, nil
}

// Element is a read-only view of one node of a parsed document. A nil
// *Element is valid and behaves like an empty node set.
type Element struct {
	node *xmlquery.Node
}

// Parse reads and normalizes an XML document.
func Parse(r io.Reader) (*Element, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("xmldoc: failed to parse XML: %w", err)
	}
	normalize(doc)
	return &Element{node: doc}, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Element, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("xmldoc: XML data is empty")
	}
	return Parse(bytes.NewReader(data))
}

func normalize(n *xmlquery.Node) {
	for ; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			if prefix, ok := prefixByURI[n.NamespaceURI]; ok {
				n.Prefix = prefix
			}
			for i := range n.Attr {
				if n.Attr[i].NamespaceURI == "" {
					continue
				}
				if prefix, ok := prefixByURI[n.Attr[i].NamespaceURI]; ok {
					n.Attr[i].Name.Space = prefix
				}
			}
		}
		normalize(n.FirstChild)
	}
}

// FindOne returns the first node matching path, or nil.
func (e *Element) FindOne(path string) *Element {
	if e == nil {
		return nil
	}
	n := xmlquery.QuerySelector(e.node, compile(path))
	if n == nil {
		return nil
	}
	return &Element{node: n}
}

// FindAll returns every node matching path in document order.
func (e *Element) FindAll(path string) []*Element {
	if e == nil {
		return nil
	}
	nodes := xmlquery.QuerySelectorAll(e.node, compile(path))
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{node: n}
	}
	return out
}

// Attr returns the string value of the first node matching path. The path
// usually ends in an attribute step or text().
func (e *Element) Attr(path string) (string, bool) {
	n := e.FindOne(path)
	if n == nil {
		return "", false
	}
	return n.node.InnerText(), true
}

// Value is Attr without the presence flag; absent and empty are the same.
func (e *Element) Value(path string) string {
	v, _ := e.Attr(path)
	return v
}

// Values returns the string value of every node matching path.
func (e *Element) Values(path string) []string {
	var out []string
	for _, n := range e.FindAll(path) {
		out = append(out, n.node.InnerText())
	}
	return out
}

// Has reports whether path selects at least one node.
func (e *Element) Has(path string) bool {
	return e.FindOne(path) != nil
}

// ParseHL7Time parses the HL7 v3 TS formats used in measure documents.
func ParseHL7Time(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 14: // YYYYMMDDHHmmss
		return time.Parse("20060102150405", s)
	case 12: // YYYYMMDDHHmm
		return time.Parse("200601021504", s)
	case 8: // YYYYMMDD
		return time.Parse("20060102", s)
	default:
		if len(s) > 14 {
			return time.Parse("20060102150405", s[:14])
		}
		return time.Time{}, fmt.Errorf("xmldoc: unrecognized time format: %s", s)
	}
}
