package weave

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.j2")
	if err := os.WriteFile(path, []byte("Hello {{ name }}!"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	tmpl, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tmpl.Name != "greeting" {
		t.Errorf("expected name greeting, got %q", tmpl.Name)
	}
	out, err := tmpl.Render(Context{"name": "weave"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "Hello weave!" {
		t.Errorf("expected greeting, got %q", out)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.j2")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestReadContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ReadContext(ctx, "irrelevant.j2"); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fetched {{ a }}"))
	}))
	defer server.Close()

	tmpl, err := Fetch(server.URL + "/prompts/welcome.j2")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if tmpl.Name != "welcome" {
		t.Errorf("expected name welcome, got %q", tmpl.Name)
	}
	out, err := tmpl.Render(Context{"a": 1})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "fetched 1" {
		t.Errorf("expected fetched 1, got %q", out)
	}
}

func TestFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if _, err := Fetch(server.URL + "/absent.j2"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFetchContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("async fetched {{ a }}"))
	}))
	defer server.Close()

	tmpl, err := FetchContext(context.Background(), server.URL+"/prompts/intro.j2")
	if err != nil {
		t.Fatalf("FetchContext failed: %v", err)
	}
	if tmpl.Name != "intro" {
		t.Errorf("expected name intro, got %q", tmpl.Name)
	}
	out, err := tmpl.RenderContext(context.Background(), Context{"a": 2})
	if err != nil {
		t.Fatalf("RenderContext failed: %v", err)
	}
	if out != "async fetched 2" {
		t.Errorf("expected async fetched 2, got %q", out)
	}
}

func TestFetchContextStatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if _, err := FetchContext(context.Background(), server.URL+"/absent.j2"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := FetchContext(ctx, server.URL+"/slow.j2"); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestStems(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"prompts/summarize.j2", "summarize"},
		{"plain", "plain"},
		{"dir/noext", "noext"},
	}
	for _, c := range cases {
		if got := fileStem(c.in); got != c.want {
			t.Errorf("fileStem(%q) = %q, expected %q", c.in, got, c.want)
		}
	}
	if got := urlStem("https://example.com/prompts/greet.j2?v=1"); got != "greet" {
		t.Errorf("urlStem = %q, expected greet", got)
	}
	if got := urlStem("https://example.com"); got != "template" {
		t.Errorf("urlStem for bare host = %q, expected template", got)
	}
}
