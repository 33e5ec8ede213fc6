package transform

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/conneroisu/assetflow/internal/errors"
	"github.com/conneroisu/assetflow/internal/pipeline"
)

const (
	// SpriteName is the stack sprite written under the images directory.
	SpriteName = "sprite.svg"
	// SpriteExampleName is the preview page listing every symbol.
	SpriteExampleName = "stack/sprite.stack.html"

	stackStyle = ":root>svg{display:none}:root>svg:target{display:block}"
)

const (
	svgNamespace   = "http://www.w3.org/2000/svg"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
	xmlNamespace   = "http://www.w3.org/XML/1998/namespace"
)

type svgDocument struct {
	XMLName xml.Name   `xml:"svg"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// Shape is one icon inside the sprite. Attrs holds the presentation
// attributes of the icon's root element with prefixes spelled out, and
// Namespaces the prefixes it declared.
type Shape struct {
	ID         string
	ViewBox    string
	Attrs      []xml.Attr
	Namespaces []xml.Attr
	Contents   []byte
}

// Sprite merges SVG assets into a stack-mode sprite: every icon becomes a
// nested <svg> with an id equal to its file name, shown only while targeted
// by a fragment (sprite.svg#icon). Icons are ordered by id so the output does
// not depend on directory order. An HTML example page is emitted alongside.
func Sprite() pipeline.Stage {
	m := newMinifier()
	return pipeline.NewStage("sprite", func(ctx context.Context, assets []*pipeline.Asset) ([]*pipeline.Asset, error) {
		if len(assets) == 0 {
			return nil, nil
		}

		shapes := make([]Shape, 0, len(assets))
		var newest time.Time
		for _, a := range assets {
			minified, err := m.Bytes(MediaTypeSVG, a.Contents)
			if err != nil {
				return nil, errors.NewToolError(errors.ErrCodeToolFailed, "cannot optimize svg", err).WithStage("sprite").WithPath(a.Source)
			}
			shape, err := parseShape(shapeID(a.Path), minified)
			if err != nil {
				return nil, errors.NewToolError(errors.ErrCodeDecodeFailed, "cannot parse svg", err).WithStage("sprite").WithPath(a.Source)
			}
			shapes = append(shapes, shape)
			if a.ModTime.After(newest) {
				newest = a.ModTime
			}
		}
		sort.Slice(shapes, func(i, j int) bool { return shapes[i].ID < shapes[j].ID })

		page, err := RenderSpriteExample(ctx, "../"+SpriteName, shapes)
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeInternalFailure, "cannot render sprite example", err)
		}

		return []*pipeline.Asset{
			{Path: SpriteName, Source: assets[0].Source, Contents: BuildStack(shapes), ModTime: newest},
			{Path: filepath.FromSlash(SpriteExampleName), Source: assets[0].Source, Contents: page, ModTime: newest},
		}, nil
	})
}

func parseShape(id string, data []byte) (Shape, error) {
	var doc svgDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Shape{}, err
	}

	prefixes := map[string]string{xmlNamespace: "xml", xlinkNamespace: "xlink"}
	shape := Shape{ID: id, Contents: bytes.TrimSpace(doc.Inner)}
	for _, a := range doc.Attrs {
		if a.Name.Space == "xmlns" {
			prefixes[a.Value] = a.Name.Local
			shape.Namespaces = append(shape.Namespaces, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
		}
	}

	// id, x and y belong to the sprite's placement of the icon, not the icon.
	var width, height string
	for _, a := range doc.Attrs {
		switch {
		case a.Name.Space == "xmlns":
		case a.Name.Space == "":
			switch a.Name.Local {
			case "xmlns", "id", "x", "y":
				continue
			case "viewBox":
				shape.ViewBox = a.Value
				continue
			case "width":
				width = a.Value
			case "height":
				height = a.Value
			}
			shape.Attrs = append(shape.Attrs, a)
		default:
			prefix, ok := prefixes[a.Name.Space]
			if !ok {
				continue
			}
			shape.Attrs = append(shape.Attrs, xml.Attr{Name: xml.Name{Local: prefix + ":" + a.Name.Local}, Value: a.Value})
		}
	}

	if shape.ViewBox == "" && width != "" && height != "" {
		shape.ViewBox = fmt.Sprintf("0 0 %s %s", trimUnit(width), trimUnit(height))
	}
	return shape, nil
}

// BuildStack serializes shapes into a single stack sprite document. Prefixes
// the icons declare move to the sprite root; a prefix bound to a different
// namespace than the root's stays declared on its own icon.
func BuildStack(shapes []Shape) []byte {
	declared := map[string]string{"xlink": xlinkNamespace}
	var hoisted []string
	local := make([][]xml.Attr, len(shapes))
	for i, s := range shapes {
		for _, ns := range s.Namespaces {
			uri, ok := declared[ns.Name.Local]
			switch {
			case !ok:
				declared[ns.Name.Local] = ns.Value
				hoisted = append(hoisted, ns.Name.Local)
			case uri != ns.Value:
				local[i] = append(local[i], ns)
			}
		}
	}
	sort.Strings(hoisted)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString("<svg")
	writeAttr(&buf, "xmlns", svgNamespace)
	writeAttr(&buf, "xmlns:xlink", xlinkNamespace)
	for _, prefix := range hoisted {
		writeAttr(&buf, "xmlns:"+prefix, declared[prefix])
	}
	buf.WriteString(">")
	buf.WriteString("<style>" + stackStyle + "</style>")
	for i, s := range shapes {
		buf.WriteString("<svg")
		writeAttr(&buf, "id", s.ID)
		writeAttr(&buf, "viewBox", s.ViewBox)
		for _, ns := range local[i] {
			writeAttr(&buf, "xmlns:"+ns.Name.Local, ns.Value)
		}
		for _, a := range s.Attrs {
			writeAttr(&buf, a.Name.Local, a.Value)
		}
		buf.WriteString(">")
		buf.Write(s.Contents)
		buf.WriteString("</svg>")
	}
	buf.WriteString("</svg>")
	return buf.Bytes()
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	buf.WriteString(" " + name + `="`)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}

func shapeID(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, base)
}

func trimUnit(v string) string {
	return strings.TrimSuffix(strings.TrimSpace(v), "px")
}
