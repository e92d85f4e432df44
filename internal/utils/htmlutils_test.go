package utils

import (
	"strings"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	body := []byte(`<!DOCTYPE html>
<html>
<head><title>t</title></head>
<body>
  <a href="/relative">rel</a>
  <a href="https://example.com/absolute">abs</a>
  <a href="https://other.test/away">away</a>
  <a href="nested/page">nested</a>
  <a href="mailto:admin@example.com">mail</a>
  <a href="javascript:void(0)">js</a>
  <a href="/dup">one</a>
  <a href="/dup">two</a>
  <a href="/frag#anchor">frag</a>
  <a>no href</a>
  <div><p><a href="/deep">deep</a></p></div>
</body>
</html>`)

	got := ExtractLinks("https://example.com/section/", body, &NoOpLogger{})

	want := []string{
		"https://example.com/relative",
		"https://example.com/absolute",
		"https://other.test/away",
		"https://example.com/section/nested/page",
		"https://example.com/dup",
		"https://example.com/frag",
		"https://example.com/deep",
	}
	if len(got) != len(want) {
		t.Fatalf("ExtractLinks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExtractLinks()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractLinksHandlesJunk(t *testing.T) {
	if got := ExtractLinks("https://example.com/", nil, &NoOpLogger{}); got != nil {
		t.Errorf("ExtractLinks(nil body) = %v, want nil", got)
	}
	if got := ExtractLinks("", []byte("<a href='/x'>x</a>"), &NoOpLogger{}); got != nil {
		t.Errorf("ExtractLinks(no base) = %v, want nil", got)
	}

	// Truncated markup still yields what the parser could recover.
	broken := []byte(`<html><body><a href="/ok">ok</a><div><a href="/also`)
	got := ExtractLinks("https://example.com/", broken, &NoOpLogger{})
	if len(got) == 0 || got[0] != "https://example.com/ok" {
		t.Errorf("ExtractLinks(broken markup) = %v, want at least /ok", got)
	}
}

func TestExtractLinksStripsFragments(t *testing.T) {
	body := []byte(`<a href="https://example.com/page#a">1</a><a href="https://example.com/page#b">2</a>`)
	got := ExtractLinks("https://example.com/", body, &NoOpLogger{})
	if len(got) != 1 || got[0] != "https://example.com/page" {
		t.Errorf("ExtractLinks() = %v, want a single fragment-free link", got)
	}
	for _, link := range got {
		if strings.Contains(link, "#") {
			t.Errorf("link %q kept its fragment", link)
		}
	}
}
