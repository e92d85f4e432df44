package core

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rafabd1/Oleander/internal/utils"
)

const (
	busterTokenLength = 8
	busterTokenChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	busterParamName   = "cb"
	reproducibleSeed  = 42
)

// Buster derives cache-busting request variants. Every variant gets a
// fresh query parameter value, and when the response carried Vary, the
// first varying request header is perturbed too, so no previously stored
// cache entry can be keyed to the probe.
type Buster struct {
	rng  *rand.Rand
	used map[string]struct{}
}

// NewBuster returns a Buster. With reproducible set, the token stream is
// seeded to a fixed value so consecutive runs generate identical variants.
func NewBuster(reproducible bool) *Buster {
	seed := time.Now().UnixNano()
	if reproducible {
		seed = reproducibleSeed
	}
	return &Buster{
		rng:  rand.New(rand.NewSource(seed)),
		used: make(map[string]struct{}),
	}
}

// token returns a random token this Buster has never handed out before.
func (b *Buster) token() string {
	for {
		buf := make([]byte, busterTokenLength)
		for i := range buf {
			buf[i] = busterTokenChars[b.rng.Intn(len(busterTokenChars))]
		}
		t := string(buf)
		if _, taken := b.used[t]; !taken {
			b.used[t] = struct{}{}
			return t
		}
	}
}

// Bust returns the cache-busted URL, headers and cookies for a probe of
// rawURL. The inputs are copied, never mutated. vary is the Vary value of
// the baseline response; when it names request headers, the first usable
// one gets a never-used value. Varying on Cookie is handled by adding a
// fresh cookie instead of clobbering the session.
func (b *Buster) Bust(rawURL string, headers, cookies map[string]string, vary string) (string, map[string]string, map[string]string, error) {
	bustedURL, err := utils.AppendQueryParam(rawURL, busterParamName, b.token())
	if err != nil {
		return "", nil, nil, fmt.Errorf("cache busting %s: %w", rawURL, err)
	}

	bustedHeaders := utils.CopyStringMap(headers)
	bustedCookies := utils.CopyStringMap(cookies)

	if name := firstVaried(vary); name != "" {
		if strings.EqualFold(name, "Cookie") {
			bustedCookies["wcd"+b.token()] = b.token()
		} else {
			bustedHeaders[name] = b.token()
		}
	}

	return bustedURL, bustedHeaders, bustedCookies, nil
}

// firstVaried picks the first usable header name out of a Vary value.
// "*" and empty entries are not header names and are skipped.
func firstVaried(vary string) string {
	for _, part := range strings.Split(vary, ",") {
		name := strings.TrimSpace(part)
		if name == "" || name == "*" {
			continue
		}
		return name
	}
	return ""
}
