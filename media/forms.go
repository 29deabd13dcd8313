package media

import (
	"fmt"
	"strings"
)

// Kind tells what a candidate form points at.
type Kind string

const (
	KindVideo  Kind = "video"
	KindPoster Kind = "poster"
	KindImage  Kind = "image"
)

// Form is one URL-construction pattern. Template contains the literal "{id}".
type Form struct {
	Kind     Kind
	Template string
}

// Build substitutes id into the template.
func (f Form) Build(id string) string {
	return strings.ReplaceAll(f.Template, "{id}", id)
}

// Forms is the ordered candidate list tried during resolution.
type Forms []Form

// ParseForms reads "kind=template" entries, keeping their order.
func ParseForms(specs []string) (Forms, error) {
	forms := make(Forms, 0, len(specs))
	for _, s := range specs {
		kind, tmpl, ok := strings.Cut(strings.TrimSpace(s), "=")
		if !ok {
			return nil, fmt.Errorf("media form %q: want kind=template", s)
		}
		k := Kind(strings.ToLower(strings.TrimSpace(kind)))
		switch k {
		case KindVideo, KindPoster, KindImage:
		default:
			return nil, fmt.Errorf("media form %q: unknown kind %q", s, kind)
		}
		tmpl = strings.TrimSpace(tmpl)
		if !strings.Contains(tmpl, "{id}") {
			return nil, fmt.Errorf("media form %q: template lacks {id}", s)
		}
		forms = append(forms, Form{Kind: k, Template: tmpl})
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("no media forms configured")
	}
	return forms, nil
}

// First returns the first form of the given kind.
func (fs Forms) First(k Kind) (Form, bool) {
	for _, f := range fs {
		if f.Kind == k {
			return f, true
		}
	}
	return Form{}, false
}

// Refs are the media URLs stored on a post.
type Refs struct {
	VideoURL string
	ImageURL string
}

// RefsFor derives stored media URLs for id. A nil resolution means probing was
// bypassed and the default video and poster forms are used.
func (fs Forms) RefsFor(id string, res *Resolution) Refs {
	build := func(k Kind) string {
		if f, ok := fs.First(k); ok {
			return f.Build(id)
		}
		return ""
	}
	if res == nil {
		return Refs{VideoURL: build(KindVideo), ImageURL: build(KindPoster)}
	}
	switch res.Form.Kind {
	case KindVideo:
		return Refs{VideoURL: res.URL, ImageURL: build(KindPoster)}
	case KindPoster:
		return Refs{VideoURL: build(KindVideo), ImageURL: res.URL}
	default:
		return Refs{ImageURL: res.URL}
	}
}
