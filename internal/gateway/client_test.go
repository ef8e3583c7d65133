package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_PostSendsCredentialAndBody(t *testing.T) {
	t.Parallel()
	var gotAuth, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte("<ok/>"))
	}))
	defer server.Close()

	c := NewClient(Config{}, nil)
	body, err := c.Post(context.Background(), server.URL, "opaque-token", "text/xml", []byte("<Execute/>"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(body) != "<ok/>" {
		t.Errorf("unexpected body %q", body)
	}
	if gotAuth != "Bearer opaque-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotType != "text/xml" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody != "<Execute/>" {
		t.Errorf("request body = %q", gotBody)
	}
}

func TestClient_GetWithoutCredential(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("expected no Authorization header")
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	if _, err := NewClient(Config{}, nil).Get(context.Background(), server.URL, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
}

func TestClient_StatusError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such process", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(Config{}, nil).Get(context.Background(), server.URL, "")
	var he *HTTPStatusError
	if !errors.As(err, &he) {
		t.Fatalf("expected *HTTPStatusError, got %T: %v", err, err)
	}
	if he.Code != http.StatusNotFound || he.Message != "no such process" {
		t.Errorf("unexpected error %+v", he)
	}
	if !IsClientError(err) || IsTransient(err) {
		t.Error("404 should be a client error and not transient")
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Config{ReadTimeout: 50 * time.Millisecond}, nil)
	_, err := c.Get(context.Background(), server.URL, "")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if !IsTransient(err) {
		t.Error("timeout should be transient")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"500", &HTTPStatusError{Code: 500}, true},
		{"503", &HTTPStatusError{Code: 503}, true},
		{"400", &HTTPStatusError{Code: 400}, false},
		{"transport", &TransportError{Cause: io.ErrUnexpectedEOF}, true},
		{"cancelled", &TransportError{Cause: context.Canceled}, false},
		{"plain", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_CONNECT_TIMEOUT", "3s")
	t.Setenv("GATEWAY_READ_TIMEOUT", "")
	cfg := LoadConfigFromEnv()
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.ReadTimeout != 120*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.ReadTimeout)
	}
}
