package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslateHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hello%20world" && r.URL.Path != "/hello world" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"src":"en","dest":"es","text":"hola mundo"}`))
	}))
	defer srv.Close()

	h := Translate(&TranslateClient{BaseURL: srv.URL})
	out, err := h(context.Background(), []string{"hello", "world"}, "chan")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if want := "en -> es: hola mundo"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}

	if _, err := h(context.Background(), nil, "chan"); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestTranslateHandlerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := Translate(&TranslateClient{BaseURL: srv.URL})
	out, err := h(context.Background(), []string{"hi"}, "chan")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out == "" {
		t.Error("expected fallback message, got empty result")
	}
}
