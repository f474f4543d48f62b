package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "127.0.0.1:7861"} {
		if _, err := NewClient(Options{BaseURL: raw}); err == nil {
			t.Errorf("NewClient(%q) accepted an invalid base URL", raw)
		}
	}
}

func TestGenerate(t *testing.T) {
	fixture := pngBytes(t)

	var gotReq generateRequest
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(fixture)
	}))
	defer sidecar.Close()

	c, err := NewClient(Options{BaseURL: sidecar.URL, HTTPClient: sidecar.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	img, err := c.Generate(context.Background(), "a portrait", 28)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("decoded image width = %d, want 4", img.Bounds().Dx())
	}
	if gotReq.Prompt != "a portrait" || gotReq.Steps != 28 {
		t.Errorf("sidecar saw %+v", gotReq)
	}
}

func TestGenerateSidecarError(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer sidecar.Close()

	c, err := NewClient(Options{BaseURL: sidecar.URL, HTTPClient: sidecar.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Generate(context.Background(), "a portrait", 28); err == nil {
		t.Fatal("expected error from failing sidecar")
	}
}

func TestGenerateBadImageBody(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a png"))
	}))
	defer sidecar.Close()

	c, err := NewClient(Options{BaseURL: sidecar.URL, HTTPClient: sidecar.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Generate(context.Background(), "a portrait", 28); err == nil {
		t.Fatal("expected decode error for non-PNG body")
	}
}

func TestReclaim(t *testing.T) {
	calls := 0
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reclaim" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer sidecar.Close()

	c, err := NewClient(Options{BaseURL: sidecar.URL, HTTPClient: sidecar.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Reclaim(context.Background()); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if calls != 1 {
		t.Errorf("reclaim calls = %d, want 1", calls)
	}
}

func TestReclaimSidecarError(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusConflict)
	}))
	defer sidecar.Close()

	c, err := NewClient(Options{BaseURL: sidecar.URL, HTTPClient: sidecar.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Reclaim(context.Background()); err == nil {
		t.Fatal("expected error from failing sidecar")
	}
}
