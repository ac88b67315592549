package weave

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Read loads a template from a file. The template's Name is the filename
// stem: loading "prompts/summarize.j2" names the template "summarize".
func Read(p string) (*Template, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading template %q: %w", p, err)
	}
	t := New(string(raw))
	t.Name = fileStem(p)
	return t, nil
}

// ReadContext is the context-aware form of Read. File reads have no
// cancellation point mid-flight, so ctx is honored before the read starts.
func ReadContext(ctx context.Context, p string) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reading template %q: %w", p, err)
	}
	return Read(p)
}

// fetchClient is shared by every Fetch call in the process and created on
// first use.
var fetchClient = sync.OnceValue(func() *fasthttp.Client {
	return &fasthttp.Client{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
})

// Fetch retrieves a template over HTTP. The template's Name is the stem of
// the URL path. The underlying client is shared process-wide; the first
// Fetch creates it and every later Fetch reuses it.
func Fetch(rawURL string) (*Template, error) {
	status, body, err := fetchClient().Get(nil, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching template %q: %w", rawURL, err)
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("fetching template %q: unexpected status %d", rawURL, status)
	}
	t := New(string(body))
	t.Name = urlStem(rawURL)
	return t, nil
}

// fetchContextClient backs FetchContext the way fetchClient backs Fetch. A
// separate client because request cancellation needs net/http's context
// plumbing.
var fetchContextClient = sync.OnceValue(func() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
})

// FetchContext is the context-aware form of Fetch: the retrieval is issued
// with ctx and can be canceled by it.
func FetchContext(ctx context.Context, rawURL string) (*Template, error) {
	ctx, span := tracer.Start(ctx, "weave.FetchContext",
		trace.WithAttributes(attribute.String("weave.url", rawURL)))
	defer span.End()

	t, err := fetchContext(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger(ctx).Error("error fetching template", "url", rawURL, "error", err)
		return nil, err
	}
	logger(ctx).Debug("fetched template", "url", rawURL, "template", t.Name)
	return t, nil
}

func fetchContext(ctx context.Context, rawURL string) (*Template, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching template %q: %w", rawURL, err)
	}
	resp, err := fetchContextClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching template %q: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching template %q: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetching template %q: %w", rawURL, err)
	}
	t := New(string(body))
	t.Name = urlStem(rawURL)
	return t, nil
}

func fileStem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func urlStem(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "template"
	}
	base := path.Base(u.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}
