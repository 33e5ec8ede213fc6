package transform

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SpriteExample renders the preview page for a stack sprite located at href.
func SpriteExample(href string, shapes []Shape) templ.Component {
	title := cases.Title(language.English)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
		b.WriteString("<title>Stack sprite</title>\n<style>")
		b.WriteString("body{font-family:sans-serif;margin:2rem}ul{list-style:none;padding:0;display:flex;flex-wrap:wrap;gap:1.5rem}")
		b.WriteString("li{text-align:center}img{display:block;width:64px;height:64px;margin:0 auto .5rem}code{font-size:.8rem}")
		b.WriteString("</style>\n</head>\n<body>\n<h1>Stack sprite</h1>\n")
		b.WriteString("<p>Reference an icon by fragment: <code>")
		b.WriteString(templ.EscapeString(href))
		b.WriteString("#id</code></p>\n<ul>\n")
		for _, s := range shapes {
			label := title.String(strings.NewReplacer("-", " ", "_", " ").Replace(s.ID))
			b.WriteString(`<li><img src="`)
			b.WriteString(templ.EscapeString(href + "#" + s.ID))
			b.WriteString(`" alt="`)
			b.WriteString(templ.EscapeString(label))
			b.WriteString(`"><span>`)
			b.WriteString(templ.EscapeString(label))
			b.WriteString("</span><br><code>#")
			b.WriteString(templ.EscapeString(s.ID))
			b.WriteString("</code></li>\n")
		}
		b.WriteString("</ul>\n</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// RenderSpriteExample renders SpriteExample into a byte slice.
func RenderSpriteExample(ctx context.Context, href string, shapes []Shape) ([]byte, error) {
	var buf bytes.Buffer
	if err := SpriteExample(href, shapes).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
