package network

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
)

// Attr is an attribute of a start tag with the byte span of its raw value
// inside the document.
type Attr struct {
	Name       string
	Value      string
	ValueStart int
	ValueEnd   int
	// Start and End span the whole attribute with its leading whitespace
	Start int
	End   int
}

// Element is a start tag and its byte span inside the document.
type Element struct {
	Name   string
	Start  int
	End    int
	Attrs  []Attr
	insert int // where a new attribute goes
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// scanTag finds the attribute spans of a start tag that the xml decoder
// already accepted.
func scanTag(doc []byte, start, end int) ([]Attr, int, error) {
	i := start + 1
	for i < end && !isSpace(doc[i]) && doc[i] != '/' && doc[i] != '>' {
		i++
	}
	insert := i
	var attrs []Attr
	for {
		attrStart := i
		for i < end && isSpace(doc[i]) {
			i++
		}
		if i >= end || doc[i] == '/' || doc[i] == '>' {
			return attrs, insert, nil
		}
		nameStart := i
		for i < end && doc[i] != '=' && !isSpace(doc[i]) {
			i++
		}
		name := string(doc[nameStart:i])
		for i < end && (isSpace(doc[i]) || doc[i] == '=') {
			i++
		}
		if i >= end || (doc[i] != '"' && doc[i] != '\'') {
			return nil, 0, errors.Errorf("unquoted attribute %s at offset %d", name, nameStart)
		}
		quote := doc[i]
		i++
		valueStart := i
		for i < end && doc[i] != quote {
			i++
		}
		if i >= end {
			return nil, 0, errors.Errorf("unterminated attribute %s at offset %d", name, nameStart)
		}
		attrs = append(attrs, Attr{Name: name, ValueStart: valueStart, ValueEnd: i, Start: attrStart, End: i + 1})
		i++
		insert = i
	}
}

type patch struct {
	start int
	end   int
	value []byte
}

// Splicer rewrites attribute values of a document and copies every other
// byte unchanged.
type Splicer struct {
	doc     []byte
	patches []patch
}

func NewSplicer(doc []byte) *Splicer {
	return &Splicer{doc: doc}
}

// Set replaces the value of name on e or appends the attribute after e's last
// attribute. Values are written as is and must not need escaping.
func (s *Splicer) Set(e *Element, name, value string) {
	for _, a := range e.Attrs {
		if a.Name == name {
			s.patches = append(s.patches, patch{start: a.ValueStart, end: a.ValueEnd, value: []byte(value)})
			return
		}
	}
	s.patches = append(s.patches, patch{start: e.insert, end: e.insert, value: []byte(" " + name + `="` + value + `"`)})
}

// Remove drops name from e. It does nothing when e has no such attribute.
func (s *Splicer) Remove(e *Element, name string) {
	for _, a := range e.Attrs {
		if a.Name == name {
			s.patches = append(s.patches, patch{start: a.Start, end: a.End})
			return
		}
	}
}

func (s *Splicer) Len() int {
	return len(s.patches)
}

func (s *Splicer) Bytes() []byte {
	patches := append([]patch(nil), s.patches...)
	sort.SliceStable(patches, func(i, j int) bool { return patches[i].start < patches[j].start })

	var out bytes.Buffer
	out.Grow(len(s.doc) + len(patches)*64)
	at := 0
	for _, p := range patches {
		if p.start < at {
			// a second edit of the same span
			continue
		}
		out.Write(s.doc[at:p.start])
		out.Write(p.value)
		at = p.end
	}
	out.Write(s.doc[at:])
	return out.Bytes()
}
