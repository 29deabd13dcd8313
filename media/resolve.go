package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/grokshare/observability"
)

// ErrUnavailable means every candidate form failed its probe.
var ErrUnavailable = errors.New("media unavailable")

// Prober checks whether a URL is fetchable.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Memo remembers the first successful candidate per identifier.
type Memo interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// Resolution is the outcome of a successful resolution.
type Resolution struct {
	URL      string `json:"url"`
	Kind     Kind   `json:"kind"`
	Attempts int    `json:"attempts"`
	Cached   bool   `json:"cached"`
	Form     Form   `json:"-"`
}

// Resolver walks candidate forms in order and stops at the first fetchable one.
type Resolver struct {
	forms   Forms
	prober  Prober
	timeout time.Duration
	memo    Memo
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds every single probe.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMemo enables memoizing the first success per identifier.
func WithMemo(m Memo) Option {
	return func(r *Resolver) { r.memo = m }
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver over forms.
func NewResolver(forms Forms, prober Prober, opts ...Option) *Resolver {
	r := &Resolver{
		forms:   forms,
		prober:  prober,
		timeout: 3 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Forms returns the configured candidate list.
func (r *Resolver) Forms() Forms { return r.forms }

type candidate struct {
	url  string
	form Form
}

// chain hands out candidates in order and never returns the same URL twice.
type chain struct {
	items []candidate
	next  int
	tried map[string]struct{}
}

func newChain(items []candidate) *chain {
	return &chain{items: items, tried: make(map[string]struct{}, len(items))}
}

func (c *chain) Next() (candidate, bool) {
	for c.next < len(c.items) {
		it := c.items[c.next]
		c.next++
		if _, seen := c.tried[it.url]; seen {
			continue
		}
		c.tried[it.url] = struct{}{}
		return it, true
	}
	return candidate{}, false
}

func (r *Resolver) candidatesFor(id string) []candidate {
	items := make([]candidate, 0, len(r.forms))
	for _, f := range r.forms {
		items = append(items, candidate{url: f.Build(id), form: f})
	}
	return items
}

// Resolve probes the forms built for id in order.
func (r *Resolver) Resolve(ctx context.Context, id string) (Resolution, error) {
	if id == "" {
		return Resolution{}, ErrUnavailable
	}
	if res, ok := r.recall(ctx, id); ok {
		return res, nil
	}
	return r.walk(ctx, id, newChain(r.candidatesFor(id)))
}

// ResolveStored starts from a previously stored media URL, then its poster
// frame, then the forms of the identifier it names.
func (r *Resolver) ResolveStored(ctx context.Context, stored string) (Resolution, error) {
	stored = strings.TrimSpace(stored)
	id, hasID := MediaID(stored)
	if hasID {
		if res, ok := r.recall(ctx, id); ok {
			return res, nil
		}
	}

	var items []candidate
	if stored != "" {
		items = append(items, candidate{url: stored, form: r.formOf(stored, id)})
		if thumb := ThumbnailURL(stored); thumb != stored {
			items = append(items, candidate{url: thumb, form: r.formOf(thumb, id)})
		}
	}
	if hasID {
		items = append(items, r.candidatesFor(id)...)
	}
	if len(items) == 0 {
		return Resolution{}, ErrUnavailable
	}
	return r.walk(ctx, id, newChain(items))
}

// formOf finds the configured form that produces u, falling back to a guess by file name.
func (r *Resolver) formOf(u, id string) Form {
	if id != "" {
		for _, f := range r.forms {
			if f.Build(id) == u {
				return f
			}
		}
	}
	clean := stripQuery(u)
	switch {
	case strings.HasSuffix(clean, ".mp4"):
		return Form{Kind: KindVideo}
	case strings.HasSuffix(clean, "_thumbnail.jpg"), strings.HasSuffix(clean, ".png"):
		return Form{Kind: KindPoster}
	default:
		return Form{Kind: KindImage}
	}
}

func (r *Resolver) walk(ctx context.Context, id string, c *chain) (Resolution, error) {
	attempts := 0
	for {
		cand, ok := c.Next()
		if !ok {
			break
		}
		attempts++
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.prober.Probe(pctx, cand.url)
		cancel()
		if err == nil {
			observability.MediaProbes.WithLabelValues(string(cand.form.Kind), "ok").Inc()
			res := Resolution{URL: cand.url, Kind: cand.form.Kind, Attempts: attempts, Form: cand.form}
			r.remember(ctx, id, res)
			observability.MediaResolutions.WithLabelValues("resolved").Inc()
			return res, nil
		}
		result := "miss"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		observability.MediaProbes.WithLabelValues(string(cand.form.Kind), result).Inc()
		r.logger.Debug("media probe failed",
			zap.String("id", id),
			zap.String("url", cand.url),
			zap.String("result", result),
			zap.Error(err))
		if ctx.Err() != nil {
			return Resolution{Attempts: attempts}, ctx.Err()
		}
	}
	observability.MediaResolutions.WithLabelValues("unavailable").Inc()
	return Resolution{Attempts: attempts}, ErrUnavailable
}

func memoKey(id string) string { return "media:resolved:" + id }

func (r *Resolver) recall(ctx context.Context, id string) (Resolution, bool) {
	if r.memo == nil {
		return Resolution{}, false
	}
	v, ok := r.memo.Get(ctx, memoKey(id))
	if !ok {
		return Resolution{}, false
	}
	kind, u, ok := strings.Cut(v, "|")
	if !ok || u == "" {
		return Resolution{}, false
	}
	observability.MediaResolutions.WithLabelValues("memo").Inc()
	return Resolution{URL: u, Kind: Kind(kind), Cached: true, Form: r.formOf(u, id)}, true
}

func (r *Resolver) remember(ctx context.Context, id string, res Resolution) {
	if r.memo == nil || id == "" {
		return
	}
	r.memo.Set(ctx, memoKey(id), string(res.Kind)+"|"+res.URL)
}
