package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// element is a namespace-agnostic XML node. Fiscal XML arrives with and without the
// portal namespaces, so every lookup matches on local names only.
type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

var errEmptyDocument = errors.New("document has no root element")

func parseTree(raw []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errEmptyDocument
	}
	return root, nil
}

// Text returns the trimmed character data of the element.
func (e *element) Text() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.text.String())
}

func (e *element) Attr(name string) string {
	if e == nil {
		return ""
	}
	return e.attrs[name]
}

// Child returns the first direct child with the given local name.
func (e *element) Child(name string) *element {
	if e == nil {
		return nil
	}
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// FirstChild returns the first direct child element, whatever its name.
func (e *element) FirstChild() *element {
	if e == nil || len(e.children) == 0 {
		return nil
	}
	return e.children[0]
}

// Path follows a chain of direct children.
func (e *element) Path(names ...string) *element {
	cur := e
	for _, n := range names {
		cur = cur.Child(n)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Find returns the first descendant (document order) from which the
// whole "a/b/c" chain resolves, mirroring an ".//a/b/c" lookup.
func (e *element) Find(path string) *element {
	names := strings.Split(path, "/")
	var found *element
	e.walk(func(n *element) bool {
		if n.name != names[0] {
			return true
		}
		if hit := n.Path(names[1:]...); hit != nil {
			found = hit
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element reached by the chain, in document order.
func (e *element) FindAll(path string) []*element {
	names := strings.Split(path, "/")
	var out []*element
	e.walk(func(n *element) bool {
		if n.name == names[0] {
			out = append(out, n.pathAll(names[1:])...)
		}
		return true
	})
	return out
}

// FindText is Find(path).Text() with absent elements reading as "".
func (e *element) FindText(path string) string {
	return e.Find(path).Text()
}

// FindFirstText returns the text of the first path that yields a non-empty value.
func (e *element) FindFirstText(paths ...string) string {
	for _, p := range paths {
		if v := e.FindText(p); v != "" {
			return v
		}
	}
	return ""
}

func (e *element) pathAll(names []string) []*element {
	if len(names) == 0 {
		return []*element{e}
	}
	var out []*element
	for _, c := range e.children {
		if c.name == names[0] {
			out = append(out, c.pathAll(names[1:])...)
		}
	}
	return out
}

// walk visits descendants in document order, excluding e itself; visit returns false to stop.
func (e *element) walk(visit func(*element) bool) bool {
	if e == nil {
		return true
	}
	for _, c := range e.children {
		if !visit(c) {
			return false
		}
		if !c.walk(visit) {
			return false
		}
	}
	return true
}

// SelfOrAll returns e when it carries the name, else every matching descendant.
func (e *element) SelfOrAll(name string) []*element {
	if e == nil {
		return nil
	}
	if e.name == name {
		return []*element{e}
	}
	return e.FindAll(name)
}
