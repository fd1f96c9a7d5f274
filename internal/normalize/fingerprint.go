// Package normalize canonicalizes raw provider articles and merges duplicates
// before they reach the catalog.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// articleNamespace scopes article UUIDs so they never collide with other
// name-based UUIDs.
var articleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://yomu.hyperjump.dev/articles"))

// NormalizeTitle lowercases title, drops punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	space := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !space && b.Len() > 0 {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Domain returns the lower-cased host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Fingerprint returns the dedup key of a story: SHA-256 over the normalized
// title and the source domain.
func Fingerprint(title, domain string) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(title) + "|" + strings.ToLower(domain)))
	return hex.EncodeToString(sum[:])
}

// ArticleID returns the stable article id for a story first seen at domain.
// It is a name-based UUID over the normalized title and the canonical source
// URL, so the same fingerprint always yields the same id.
func ArticleID(title, domain string) string {
	name := NormalizeTitle(title) + "\n" + "https://" + strings.ToLower(domain)
	return uuid.NewSHA1(articleNamespace, []byte(name)).String()
}
