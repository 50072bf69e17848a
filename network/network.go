package network

import (
	"bytes"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"evstudy.dev/zmap/frame"
)

const FUNCTION_INTERNAL = "internal"

type Junction struct {
	*Element
	ID    string
	Point orb.Point
	HasXY bool
}

type Lane struct {
	*Element
	ID    string
	Shape string
}

type Edge struct {
	*Element
	ID       string
	From     string
	To       string
	Function string
	Shape    string
	HasShape bool
	Lanes    []Lane
}

func (e *Edge) Internal() bool {
	return e.Function == FUNCTION_INTERNAL
}

// Network is the part of a SUMO net.xml document that carries geometry. The
// elements keep their byte spans so the document can be rewritten in place.
type Network struct {
	Doc         []byte
	Location    *Element
	Junctions   []Junction
	Edges       []Edge
	junctionIdx map[string]int
}

func (n *Network) Junction(id string) (Junction, bool) {
	i, ok := n.junctionIdx[id]
	if !ok {
		return Junction{}, false
	}
	return n.Junctions[i], true
}

// Frame reads the location element.
func (n *Network) Frame() (frame.Frame, error) {
	if n.Location == nil {
		return frame.Frame{}, &frame.ConfigurationError{Field: "location", Err: errors.New("network has no location element")}
	}
	get := func(name string) string {
		v, _ := n.Location.Attr(name)
		return v
	}
	return frame.ParseLocation(get("netOffset"), get("convBoundary"), get("origBoundary"), get("projParameter"))
}

// Walk calls fn for every start tag of doc in document order along with the
// names of its enclosing elements.
func Walk(doc []byte, fn func(e *Element, parents []string) error) error {
	d := xml.NewDecoder(bytes.NewReader(doc))
	var stack []string
	for {
		start := int(d.InputOffset())
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "could not parse network")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			end := int(d.InputOffset())
			attrs, insert, err := scanTag(doc, start, end)
			if err != nil {
				return err
			}
			if len(attrs) != len(t.Attr) {
				return errors.Errorf("element %s at offset %d: could not match attributes", t.Name.Local, start)
			}
			for i := range attrs {
				attrs[i].Value = t.Attr[i].Value
			}
			e := &Element{Name: t.Name.Local, Start: start, End: end, Attrs: attrs, insert: insert}
			if err := fn(e, stack); err != nil {
				return err
			}
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) != 0 {
		return errors.New("network document ended early")
	}
	return nil
}

func Parse(doc []byte) (*Network, error) {
	n := &Network{Doc: doc, junctionIdx: map[string]int{}}
	err := Walk(doc, func(e *Element, parents []string) error {
		parent := ""
		if len(parents) > 0 {
			parent = parents[len(parents)-1]
		}
		switch {
		case e.Name == "location" && len(parents) == 1:
			n.Location = e
		case e.Name == "junction" && len(parents) == 1:
			j := Junction{Element: e}
			j.ID, _ = e.Attr("id")
			j.Point, j.HasXY = parseXY(e)
			if !j.HasXY {
				slog.Debug("junction without coordinates", "id", j.ID)
			}
			n.junctionIdx[j.ID] = len(n.Junctions)
			n.Junctions = append(n.Junctions, j)
		case e.Name == "edge" && len(parents) == 1:
			edge := Edge{Element: e}
			edge.ID, _ = e.Attr("id")
			edge.From, _ = e.Attr("from")
			edge.To, _ = e.Attr("to")
			edge.Function, _ = e.Attr("function")
			edge.Shape, edge.HasShape = e.Attr("shape")
			n.Edges = append(n.Edges, edge)
		case e.Name == "lane" && parent == "edge" && len(n.Edges) > 0:
			l := Lane{Element: e}
			l.ID, _ = e.Attr("id")
			l.Shape, _ = e.Attr("shape")
			last := &n.Edges[len(n.Edges)-1]
			last.Lanes = append(last.Lanes, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func parseXY(e *Element) (orb.Point, bool) {
	xs, okx := e.Attr("x")
	ys, oky := e.Attr("y")
	if !okx || !oky {
		return orb.Point{}, false
	}
	x, errx := strconv.ParseFloat(xs, 64)
	y, erry := strconv.ParseFloat(ys, 64)
	if errx != nil || erry != nil {
		return orb.Point{}, false
	}
	return orb.Point{x, y}, true
}
