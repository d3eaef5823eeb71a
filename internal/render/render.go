// Package render produces the cached HTML for groups and markdown links.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dukerupert/linkshelf/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

type Renderer struct {
	md   goldmark.Markdown
	page *template.Template
	now  func() time.Time
}

func New() *Renderer {
	return &Renderer{
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		page: template.Must(template.ParseFS(templateFS, "templates/group.html")),
		now:  time.Now,
	}
}

// Markdown converts src to HTML. Raw HTML in src is not passed through.
func (r *Renderer) Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// Link renders the cache payload for a single link. Only markdown links
// have one; other types report ok=false.
func (r *Renderer) Link(l *model.Link) (string, bool, error) {
	if l.Type != model.LinkTypeMarkdown {
		return "", false, nil
	}
	var src string
	if l.Content != nil {
		src = *l.Content
	}
	out, err := r.Markdown(src)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

type pageLink struct {
	Type string
	URL  string
	Name string
	Body template.HTML
}

type pageData struct {
	Group      *model.LinkGroup
	Links      []pageLink
	RenderedAt time.Time
}

// GroupPage renders the public page for a group. Markdown links are rendered
// from their source; a link's stored cache may hold client-supplied content
// and is never inlined as HTML.
func (r *Renderer) GroupPage(g *model.LinkGroup, links []model.LinkWithCache) (string, error) {
	data := pageData{Group: g, RenderedAt: r.now().UTC()}

	for _, l := range links {
		pl := pageLink{Type: l.Type, URL: l.URL}
		if l.Name != nil {
			pl.Name = *l.Name
		}
		if l.Type == model.LinkTypeMarkdown {
			out, _, err := r.Link(&l.Link)
			if err != nil {
				return "", err
			}
			// Produced by goldmark with raw HTML disabled.
			pl.Body = template.HTML(out)
		}
		data.Links = append(data.Links, pl)
	}

	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render group page: %w", err)
	}
	return buf.String(), nil
}
