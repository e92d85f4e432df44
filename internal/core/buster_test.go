package core

import (
	"net/url"
	"strings"
	"testing"
)

func TestBusterAddsFreshParam(t *testing.T) {
	buster := NewBuster(true)

	busted, _, _, err := buster.Bust("https://example.com/account", nil, nil, "")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}

	u, err := url.Parse(busted)
	if err != nil {
		t.Fatalf("busted URL %q does not parse: %v", busted, err)
	}
	token := u.Query().Get(busterParamName)
	if len(token) != busterTokenLength {
		t.Errorf("busted param %q has length %d, want %d", token, len(token), busterTokenLength)
	}
	if u.Host != "example.com" || u.Path != "/account" {
		t.Errorf("busted URL %q altered more than the query", busted)
	}
}

func TestBusterPreservesExistingQuery(t *testing.T) {
	buster := NewBuster(true)

	busted, _, _, err := buster.Bust("https://example.com/search?q=shoes", nil, nil, "")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}

	u, _ := url.Parse(busted)
	if got := u.Query().Get("q"); got != "shoes" {
		t.Errorf("existing query parameter q = %q, want %q", got, "shoes")
	}
	if u.Query().Get(busterParamName) == "" {
		t.Error("busting parameter missing")
	}
}

func TestBusterTokensNeverRepeat(t *testing.T) {
	buster := NewBuster(true)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		busted, _, _, err := buster.Bust("https://example.com/", nil, nil, "")
		if err != nil {
			t.Fatalf("Bust() error = %v", err)
		}
		u, _ := url.Parse(busted)
		token := u.Query().Get(busterParamName)
		if _, dup := seen[token]; dup {
			t.Fatalf("token %q handed out twice", token)
		}
		seen[token] = struct{}{}
	}
}

func TestBusterDoesNotMutateInputs(t *testing.T) {
	buster := NewBuster(true)
	headers := map[string]string{"Accept-Language": "en-US,en;q=0.5"}
	cookies := map[string]string{"session": "abc123"}

	_, bustedHeaders, bustedCookies, err := buster.Bust("https://example.com/", headers, cookies, "Accept-Language, Cookie")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}

	if headers["Accept-Language"] != "en-US,en;q=0.5" {
		t.Errorf("input headers mutated: %v", headers)
	}
	if len(cookies) != 1 || cookies["session"] != "abc123" {
		t.Errorf("input cookies mutated: %v", cookies)
	}

	bustedHeaders["X-Extra"] = "x"
	bustedCookies["extra"] = "x"
	if _, ok := headers["X-Extra"]; ok {
		t.Error("returned headers alias the input map")
	}
	if _, ok := cookies["extra"]; ok {
		t.Error("returned cookies alias the input map")
	}
}

func TestBusterPerturbsFirstVariedHeader(t *testing.T) {
	buster := NewBuster(true)
	headers := map[string]string{"Accept-Language": "en-US,en;q=0.5"}

	_, bustedHeaders, _, err := buster.Bust("https://example.com/", headers, nil, "Accept-Language, User-Agent")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}

	got := bustedHeaders["Accept-Language"]
	if got == "" || got == "en-US,en;q=0.5" {
		t.Errorf("varied header not perturbed, got %q", got)
	}
	if _, ok := bustedHeaders["User-Agent"]; ok {
		t.Error("only the first varied header should be perturbed")
	}
}

func TestBusterVaryOnCookieAddsCookie(t *testing.T) {
	buster := NewBuster(true)
	cookies := map[string]string{"session": "abc123"}

	_, bustedHeaders, bustedCookies, err := buster.Bust("https://example.com/", nil, cookies, "cookie")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}

	if bustedCookies["session"] != "abc123" {
		t.Errorf("session cookie lost: %v", bustedCookies)
	}
	if len(bustedCookies) != 2 {
		t.Fatalf("want one fresh cookie next to the session, got %v", bustedCookies)
	}
	for name := range bustedCookies {
		if name == "session" {
			continue
		}
		if !strings.HasPrefix(name, "wcd") {
			t.Errorf("fresh cookie name %q lacks the wcd prefix", name)
		}
	}
	if len(bustedHeaders) != 0 {
		t.Errorf("vary on Cookie must not touch headers, got %v", bustedHeaders)
	}
}

func TestBusterIgnoresWildcardVary(t *testing.T) {
	buster := NewBuster(true)

	_, bustedHeaders, bustedCookies, err := buster.Bust("https://example.com/", nil, nil, " * ")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}
	if len(bustedHeaders) != 0 || len(bustedCookies) != 0 {
		t.Errorf("wildcard vary must not perturb anything, got headers=%v cookies=%v", bustedHeaders, bustedCookies)
	}
}

func TestBusterSkipsEmptyVaryEntries(t *testing.T) {
	buster := NewBuster(true)

	_, bustedHeaders, _, err := buster.Bust("https://example.com/", nil, nil, " , *, X-Device")
	if err != nil {
		t.Fatalf("Bust() error = %v", err)
	}
	if bustedHeaders["X-Device"] == "" {
		t.Errorf("expected X-Device to be perturbed, got %v", bustedHeaders)
	}
}

func TestBusterReproducibleRuns(t *testing.T) {
	first := NewBuster(true)
	second := NewBuster(true)

	for i := 0; i < 5; i++ {
		a, _, _, err := first.Bust("https://example.com/", nil, nil, "")
		if err != nil {
			t.Fatalf("Bust() error = %v", err)
		}
		b, _, _, err := second.Bust("https://example.com/", nil, nil, "")
		if err != nil {
			t.Fatalf("Bust() error = %v", err)
		}
		if a != b {
			t.Fatalf("reproducible busters diverged at step %d: %q vs %q", i, a, b)
		}
	}
}

func TestBusterInvalidURL(t *testing.T) {
	buster := NewBuster(true)
	if _, _, _, err := buster.Bust("://not-a-url", nil, nil, ""); err == nil {
		t.Error("Bust() with invalid URL should fail")
	}
}
