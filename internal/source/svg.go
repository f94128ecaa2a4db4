package source

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html/charset"

	"github.com/ivlev/concept2video/internal/domain"
)

// Elements whose subtrees never contribute geometry.
var ignored = map[string]bool{
	"defs": true, "title": true, "desc": true, "metadata": true, "style": true,
	"script": true, "symbol": true, "clipPath": true, "mask": true, "marker": true,
	"pattern": true, "filter": true, "linearGradient": true, "radialGradient": true,
}

var containers = map[string]bool{
	"g": true, "a": true, "svg": true, "switch": true,
}

// presentation is the inheritable paint state of a container.
type presentation struct {
	fill        string
	stroke      string
	strokeWidth string
	fontSize    string
}

func (p presentation) with(attrs map[string]string) presentation {
	if v, ok := attrs["fill"]; ok {
		p.fill = v
	}
	if v, ok := attrs["stroke"]; ok {
		p.stroke = v
	}
	if v, ok := attrs["stroke-width"]; ok {
		p.strokeWidth = v
	}
	if v, ok := attrs["font-size"]; ok {
		p.fontSize = v
	}
	return p
}

type parser struct {
	log   *slog.Logger
	doc   *Document
	stack []presentation

	skipDepth int

	// open <text> element
	textDepth int
	text      Element
	textBuf   strings.Builder
}

// ParseString parses an SVG document held in memory.
func ParseString(s string, logger *slog.Logger) (*Document, error) {
	return Parse(strings.NewReader(s), logger)
}

// Parse reads an SVG document into a canvas and its supported elements.
// Unknown elements are skipped with a warning. Only a missing root or an
// undecodable stream is an error.
func Parse(r io.Reader, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &parser{log: logger}

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity

	for {
		t, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if p.doc == nil {
				return nil, &domain.Error{Kind: domain.KindValidation, Op: "parse", Err: fmt.Errorf("%w: %v", ErrNoRoot, err)}
			}
			return nil, &domain.Error{Kind: domain.KindValidation, Op: "parse", Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}

		switch se := t.(type) {
		case xml.StartElement:
			if err := p.start(se); err != nil {
				return nil, err
			}
		case xml.EndElement:
			p.end()
		case xml.CharData:
			if p.textDepth > 0 && p.skipDepth == 0 {
				p.textBuf.Write(se)
			}
		}
	}

	if p.doc == nil {
		return nil, &domain.Error{Kind: domain.KindValidation, Op: "parse", Err: ErrNoRoot}
	}
	return p.doc, nil
}

func (p *parser) start(se xml.StartElement) error {
	name := se.Name.Local
	attrs := attrMap(se.Attr)

	if p.doc == nil {
		if name != "svg" {
			return &domain.Error{Kind: domain.KindValidation, Op: "parse", Err: fmt.Errorf("%w: root is <%s>", ErrNoRoot, name)}
		}
		w, h := canvasSize(attrs)
		p.doc = &Document{Width: w, Height: h}
		p.stack = append(p.stack, presentation{}.with(attrs))
		return nil
	}

	if p.skipDepth > 0 {
		p.skipDepth++
		return nil
	}

	if p.textDepth > 0 {
		// tspan and friends only contribute character data
		p.textDepth++
		return nil
	}

	switch {
	case containers[name]:
		p.stack = append(p.stack, p.top().with(attrs))
		return nil
	case ignored[name]:
		p.skipDepth = 1
		return nil
	}

	style := p.top().with(attrs)
	switch ElementKind(name) {
	case KindRect:
		e := p.newElement(KindRect, style)
		e.X = number(attrs["x"])
		e.Y = number(attrs["y"])
		e.Width = number(attrs["width"])
		e.Height = number(attrs["height"])
		p.add(e)
	case KindCircle:
		e := p.newElement(KindCircle, style)
		e.CX = number(attrs["cx"])
		e.CY = number(attrs["cy"])
		e.R = number(attrs["r"])
		p.add(e)
	case KindEllipse:
		e := p.newElement(KindEllipse, style)
		e.CX = number(attrs["cx"])
		e.CY = number(attrs["cy"])
		e.RX = number(attrs["rx"])
		e.RY = number(attrs["ry"])
		p.add(e)
	case KindLine:
		e := p.newElement(KindLine, style)
		e.X1 = number(attrs["x1"])
		e.Y1 = number(attrs["y1"])
		e.X2 = number(attrs["x2"])
		e.Y2 = number(attrs["y2"])
		p.add(e)
	case KindText:
		e := p.newElement(KindText, style)
		e.X = number(attrs["x"])
		e.Y = number(attrs["y"])
		p.text = e
		p.textBuf.Reset()
		p.textDepth = 1
		return nil
	default:
		p.log.Warn("skipping unsupported svg element", "element", name)
		p.doc.Skipped = append(p.doc.Skipped, name)
	}

	// children of primitives carry nothing we map
	p.skipDepth = 1
	return nil
}

func (p *parser) end() {
	switch {
	case p.skipDepth > 0:
		p.skipDepth--
	case p.textDepth > 0:
		p.textDepth--
		if p.textDepth == 0 {
			p.text.Text = strings.Join(strings.Fields(p.textBuf.String()), " ")
			p.add(p.text)
		}
	case len(p.stack) > 0:
		p.stack = p.stack[:len(p.stack)-1]
	}
}

func (p *parser) top() presentation {
	if len(p.stack) == 0 {
		return presentation{}
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) newElement(kind ElementKind, st presentation) Element {
	e := Element{
		Kind:        kind,
		Fill:        DefaultFill,
		Stroke:      DefaultStroke,
		StrokeWidth: DefaultStrokeWidth,
	}
	if v := strings.TrimSpace(st.fill); v != "" {
		e.Fill = v
	}
	if v := strings.TrimSpace(st.stroke); v != "" {
		e.Stroke = v
	}
	if v := strings.TrimSpace(st.strokeWidth); v != "" {
		e.StrokeWidth = number(v)
	}
	if kind == KindText {
		e.FontSize = DefaultFontSize
		if v := strings.TrimSpace(st.fontSize); v != "" {
			e.FontSize = number(v)
		}
	}
	return e
}

func (p *parser) add(e Element) {
	e.Index = len(p.doc.Elements)
	p.doc.Elements = append(p.doc.Elements, e)
}

// attrMap flattens attributes, letting style declarations win.
func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	var style string
	for _, a := range attrs {
		if a.Name.Space != "" && a.Name.Space != "http://www.w3.org/2000/svg" {
			continue
		}
		if a.Name.Local == "style" {
			style = a.Value
			continue
		}
		m[a.Name.Local] = a.Value
	}
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}

// canvasSize prefers a valid viewBox, then width/height.
func canvasSize(attrs map[string]string) (float64, float64) {
	if vb := splitOnCommaOrSpace(attrs["viewBox"]); len(vb) == 4 {
		w, errW := strconv.ParseFloat(vb[2], 64)
		h, errH := strconv.ParseFloat(vb[3], 64)
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return w, h
		}
	}

	w, h := DefaultWidth, DefaultHeight
	if v, ok := length(attrs["width"]); ok && v > 0 {
		w = v
	}
	if v, ok := length(attrs["height"]); ok && v > 0 {
		h = v
	}
	return w, h
}

// length parses a number with an optional px suffix.
func length(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// number is length with malformed values read as 0.
func number(s string) float64 {
	f, _ := length(s)
	return f
}

func splitOnCommaOrSpace(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}
