package invoice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testKey = "35200114200166000187550010000000046550000046"

func TestValidKey(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{testKey, true},
		{"", false},
		{strings.Repeat("1", 43), false},
		{strings.Repeat("1", 45), false},
		{strings.Repeat("1", 43) + "a", false},
		{"3520 114200166000187550010000000046550000046", false},
	}
	for _, tc := range cases {
		if got := ValidKey(tc.key); got != tc.want {
			t.Fatalf("ValidKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestLookupReturnsRawXML(t *testing.T) {
	document := `<?xml version="1.0"?><nfeProc><infNFe Id="NFe` + testKey + `"/></nfeProc>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices/"+testKey {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(document))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	body, err := client.Lookup(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(body) != document {
		t.Fatalf("expected the upstream XML verbatim, got %q", body)
	}
}

func TestDanfeReturnsDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices/"+testKey+"/danfe" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 danfe"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	body, err := client.Danfe(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Danfe: %v", err)
	}
	if !strings.HasPrefix(string(body), "%PDF-") {
		t.Fatalf("expected pdf bytes, got %q", body)
	}
}

func TestDanfeInvalidKey(t *testing.T) {
	client := NewClient("http://unused", time.Second)
	if _, err := client.Danfe(context.Background(), "not-a-key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestLookupInvalidKey(t *testing.T) {
	client := NewClient("http://unused", time.Second)
	if _, err := client.Lookup(context.Background(), "not-a-key"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func TestLookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Lookup(context.Background(), testKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupUpstreamDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Lookup(context.Background(), testKey); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	server.Close()
	if _, err := client.Lookup(context.Background(), testKey); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err after close = %v, want ErrUpstreamUnavailable", err)
	}
}
