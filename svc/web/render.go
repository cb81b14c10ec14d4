// Package web renders the HTML pages of the paste bin.
//
// Entry text is stored already escaped (and possibly wrapped in <pre>) when
// it is pasted, so it is emitted as-is. Everything else goes through
// html/template's contextual escaping.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"time"

	"pastebin/pkg/domain"
	"pastebin/svc/hist"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	PageIndex     = "index"
	PageDeleted   = "deleted"
	PageShortURLs = "shorturls"
)

//go:embed templates/*.html
var templateFS embed.FS

type Renderer struct {
	pages map[string]*template.Template
	loc   *time.Location
}

// Messages are shown on the main page between the form and the active list.
type Messages struct {
	Error string
	Info  string
}

type indexData struct {
	hist.View
	Messages
}

type button struct {
	Action string
	ID     uuid.UUID
	Label  string
}

func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Renderer{pages: map[string]*template.Template{}, loc: loc}
	funcs := template.FuncMap{
		"entryHTML": func(e domain.Entry) template.HTML { return template.HTML(e.Text) },
		"stamp":     r.stamp,
		"button": func(action string, id uuid.UUID, label string) button {
			return button{Action: action, ID: id, Label: label}
		},
	}
	for _, page := range []string{PageIndex, PageDeleted, PageShortURLs} {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s template", page)
		}
		r.pages[page] = t
	}
	return r, nil
}

// stamp formats a timestamp so that date and time never wrap on their own.
func (r *Renderer) stamp(v any) template.HTML {
	var t time.Time
	switch ts := v.(type) {
	case time.Time:
		t = ts
	case *time.Time:
		if ts == nil {
			return ""
		}
		t = *ts
	default:
		return ""
	}
	t = t.In(r.loc)
	return template.HTML("<nobr>" + t.Format("2006-01-02") + "</nobr> <nobr>" + t.Format("15:04:05") + "</nobr>")
}

func (r *Renderer) execute(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return errors.Errorf("unknown page %q", page)
	}
	return errors.Wrapf(t.ExecuteTemplate(w, page+".html", data), "render %s", page)
}

func (r *Renderer) Index(w io.Writer, v hist.View, msg Messages) error {
	return r.execute(w, PageIndex, indexData{View: v, Messages: msg})
}

func (r *Renderer) Deleted(w io.Writer, v hist.View) error {
	return r.execute(w, PageDeleted, v)
}

func (r *Renderer) ShortURLs(w io.Writer, v hist.View) error {
	return r.execute(w, PageShortURLs, v)
}

// Render renders a page without messages into a buffer, the form the page
// cache stores.
func (r *Renderer) Render(page string, v hist.View) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch page {
	case PageIndex:
		err = r.Index(&buf, v, Messages{})
	default:
		err = r.execute(&buf, page, v)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
