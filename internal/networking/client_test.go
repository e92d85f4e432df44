package networking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rafabd1/Oleander/internal/config"
	"github.com/rafabd1/Oleander/internal/utils"
)

func newTestClient(t *testing.T, cfg *config.Config) *Client {
	t.Helper()
	client, err := NewClient(cfg, &utils.NoOpLogger{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClientSendsBrowserProfile(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := config.GetDefaultConfig()
	cfg.Cookies = map[string]string{"b": "2", "a": "1"}
	client := newTestClient(t, cfg)

	resp, err := client.Get(context.Background(), Request{URL: server.URL, FollowRedirects: true})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Get("User-Agent") != cfg.UserAgent {
		t.Errorf("User-Agent = %q, want the configured browser profile", got.Get("User-Agent"))
	}
	for _, name := range []string{"Accept", "Accept-Language", "Sec-Fetch-Mode", "DNT"} {
		if got.Get(name) == "" {
			t.Errorf("profile header %s missing from the request", name)
		}
	}
	if got.Get("Cookie") != "a=1; b=2" {
		t.Errorf("Cookie = %q, want deterministic a=1; b=2", got.Get("Cookie"))
	}

	if resp.StatusCode != http.StatusOK || string(resp.Body) != "ok" {
		t.Errorf("response = %d %q, want 200 ok", resp.StatusCode, resp.Body)
	}
	if resp.SentHeaders.Get("User-Agent") != cfg.UserAgent {
		t.Error("SentHeaders should mirror what was handed to the transport")
	}
	if resp.URL != server.URL {
		t.Errorf("final URL = %q, want %q", resp.URL, server.URL)
	}
}

func TestClientHeaderAndCookieOverrides(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	cfg := config.GetDefaultConfig()
	cfg.Cookies = map[string]string{"session": "base"}
	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), Request{
		URL:     server.URL,
		Headers: map[string]string{"Accept-Language": "fr-FR", "X-Probe": "v1"},
		Cookies: map[string]string{"session": "base", "wcdtoken": "x"},
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Get("Accept-Language") != "fr-FR" {
		t.Errorf("Accept-Language = %q, want the per-request override", got.Get("Accept-Language"))
	}
	if got.Get("X-Probe") != "v1" {
		t.Errorf("X-Probe = %q, want v1", got.Get("X-Probe"))
	}
	if got.Get("Cookie") != "session=base; wcdtoken=x" {
		t.Errorf("Cookie = %q, want the overridden cookie set", got.Get("Cookie"))
	}
}

func TestClientEmptyCookieOverrideSendsNone(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer server.Close()

	cfg := config.GetDefaultConfig()
	cfg.Cookies = map[string]string{"session": "base"}
	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), Request{URL: server.URL, Cookies: map[string]string{}})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Get("Cookie") != "" {
		t.Errorf("Cookie = %q, want none with an empty override", got.Get("Cookie"))
	}
}

func TestClientRedirectToggle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, config.GetDefaultConfig())

	followed, err := client.Get(context.Background(), Request{URL: server.URL + "/redirect", FollowRedirects: true})
	if err != nil {
		t.Fatalf("Get() follow error = %v", err)
	}
	if followed.StatusCode != http.StatusOK || string(followed.Body) != "landed" {
		t.Errorf("followed response = %d %q, want the redirect target", followed.StatusCode, followed.Body)
	}
	if followed.URL != server.URL+"/final" {
		t.Errorf("followed final URL = %q, want %q", followed.URL, server.URL+"/final")
	}

	raw, err := client.Get(context.Background(), Request{URL: server.URL + "/redirect", FollowRedirects: false})
	if err != nil {
		t.Fatalf("Get() no-follow error = %v", err)
	}
	if raw.StatusCode != http.StatusFound {
		t.Errorf("unfollowed status = %d, want %d", raw.StatusCode, http.StatusFound)
	}
	if raw.Headers.Get("Location") != "/final" {
		t.Errorf("Location = %q, want /final", raw.Headers.Get("Location"))
	}
	if raw.URL != server.URL+"/redirect" {
		t.Errorf("unfollowed final URL = %q, want the original", raw.URL)
	}
}

func TestClientJarCarriesServerCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "issued", Value: "by-server", Path: "/"})
	})
	var second string
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		second = r.Header.Get("Cookie")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, config.GetDefaultConfig())
	ctx := context.Background()

	if _, err := client.Get(ctx, Request{URL: server.URL + "/set", FollowRedirects: true}); err != nil {
		t.Fatalf("Get(/set) error = %v", err)
	}
	if _, err := client.Get(ctx, Request{URL: server.URL + "/check", FollowRedirects: true}); err != nil {
		t.Fatalf("Get(/check) error = %v", err)
	}

	if second != "issued=by-server" {
		t.Errorf("second request Cookie = %q, want the jar to replay the server cookie", second)
	}
}

func TestClientTransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := server.URL
	server.Close()

	cfg := config.GetDefaultConfig()
	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), Request{URL: dead, FollowRedirects: true})
	if err == nil {
		t.Fatal("Get() against a closed server should fail")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a TransportError", err)
	}
	if te.Kind != ErrKindConnection {
		t.Errorf("Kind = %v, want %v", te.Kind, ErrKindConnection)
	}
	if te.URL != dead {
		t.Errorf("error URL = %q, want %q", te.URL, dead)
	}
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := config.GetDefaultConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	client := newTestClient(t, cfg)

	_, err := client.Get(context.Background(), Request{URL: server.URL, FollowRedirects: true})
	if err == nil {
		t.Fatal("Get() should time out")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a TransportError", err)
	}
	if te.Kind != ErrKindTimeout {
		t.Errorf("Kind = %v, want %v", te.Kind, ErrKindTimeout)
	}
}

func TestClientInvalidRequestURL(t *testing.T) {
	client := newTestClient(t, config.GetDefaultConfig())

	_, err := client.Get(context.Background(), Request{URL: "http://bad host/"})
	if err == nil {
		t.Fatal("Get() with an invalid URL should fail")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not a TransportError", err)
	}
	if te.Kind != ErrKindRequest {
		t.Errorf("Kind = %v, want %v", te.Kind, ErrKindRequest)
	}
}
