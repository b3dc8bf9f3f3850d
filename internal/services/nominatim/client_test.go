package nominatim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"floravision/internal/services"
)

func TestReverseSendsQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "jsonv2" || q.Get("accept-language") != "zh-CN" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("lat") != "22.568472" || q.Get("lon") != "113.828484" {
			t.Errorf("unexpected coordinates %s", r.URL.RawQuery)
		}
		if q.Get("email") != "ops@example.com" {
			t.Errorf("expected email param, got %q", q.Get("email"))
		}
		if r.Header.Get("User-Agent") != "floravision-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"place_id":1,"display_name":"x","address":{"country":"中国","state":"广东省","city":"深圳市","district":"宝安区"}}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "floravision-test", WithEmail("ops@example.com"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr, err := client.Reverse(context.Background(), 22.568472, 113.828484, "zh-CN")
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if addr["district"] != "宝安区" || addr["state"] != "广东省" {
		t.Fatalf("unexpected address %+v", addr)
	}
}

func TestReverseNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	client, _ := New(srv.URL, "floravision-test")
	if _, err := client.Reverse(context.Background(), 0, 0, ""); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestReverseServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, _ := New(srv.URL, "floravision-test")
	_, err := client.Reverse(context.Background(), 1, 1, "")
	if !errors.Is(err, services.ErrGeocodeService) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestReverseTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, _ := New(srv.URL, "floravision-test")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Reverse(ctx, 1, 1, "")
	if !errors.Is(err, services.ErrGeocodeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNewRequiresUserAgent(t *testing.T) {
	if _, err := New("", " "); err == nil {
		t.Fatal("expected error for empty user agent")
	}
	client, err := New("", "ua")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base url, got %s", client.baseURL)
	}
}
