package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBaseHeadersApplied(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	base := http.Header{}
	base.Set("apikey", "secret")
	base.Set("Prefer", "return=minimal")
	c := NewClient(base)

	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got.Get("apikey") != "secret" {
		t.Errorf("apikey header not applied: %v", got)
	}
	if got.Get("Prefer") != "return=minimal" {
		t.Errorf("Prefer header not applied: %v", got)
	}
}

func TestPerRequestHeadersOverrideBase(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	base := http.Header{}
	base.Set("Prefer", "return=minimal")
	c := NewClient(base)

	override := http.Header{}
	override.Set("Prefer", "return=representation")
	resp, err := c.Post(context.Background(), srv.URL, []byte(`[]`), override)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()

	if vals := got.Values("Prefer"); len(vals) != 1 || vals[0] != "return=representation" {
		t.Errorf("Prefer = %v, want single overridden value", vals)
	}
}

func TestPostBody(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c := NewClient(nil)
	resp, err := c.Post(context.Background(), srv.URL, []byte(`{"a":1}`), nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()

	if string(body) != `{"a":1}` {
		t.Errorf("server saw body %q", body)
	}
}
