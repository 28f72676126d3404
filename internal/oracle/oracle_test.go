package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetRateParsesDecimal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/rates/USD%2FTESTNET" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"rate":"123.456789"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second)
	rate, err := c.GetRate(context.Background(), Pair("usd", "testnet"))
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if rate.String() != "123.456789" {
		t.Fatalf("unexpected rate %s", rate)
	}
}

func TestGetRateUnavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"zero": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"rate":"0"}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewHTTPClient(srv.URL, "", time.Second).GetRate(context.Background(), "USD/X")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected oracle_unavailable, got %v", err)
			}
		})
	}
}

func TestGetRateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	_, err := NewHTTPClient(srv.URL, "", 20*time.Millisecond).GetRate(context.Background(), "USD/X")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected oracle_unavailable on timeout, got %v", err)
	}
}

func TestGetRateWithoutBaseURL(t *testing.T) {
	_, err := NewHTTPClient("", "", 0).GetRate(context.Background(), "USD/X")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected oracle_unavailable, got %v", err)
	}
}
