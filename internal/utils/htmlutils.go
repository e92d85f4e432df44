package utils

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks collects the absolute targets of every <a href> in an HTML
// document. Relative references are resolved against baseURL; only http(s)
// results are kept and duplicates are dropped. Markup that fails to parse
// yields an empty slice: link discovery is best-effort.
func ExtractLinks(baseURL string, body []byte, logger Logger) []string {
	if len(body) == 0 || baseURL == "" {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		logger.Warnf("ExtractLinks: failed to parse base URL %q: %v", baseURL, err)
		return nil
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		logger.Debugf("ExtractLinks: failed to parse HTML from %q: %v", baseURL, err)
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" {
					break
				}

				ref, err := url.Parse(href)
				if err != nil {
					break
				}

				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					break
				}
				if resolved.Host == "" {
					break
				}
				resolved.Fragment = ""

				link := resolved.String()
				if _, ok := seen[link]; !ok {
					seen[link] = struct{}{}
					links = append(links, link)
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}
