package resolver

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/contaixt/contaixt/pkg/types"
)

var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips diacritics, and collapses whitespace.
// "José  García" and "jose garcia" normalize to the same string.
func Normalize(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	s = strings.ToLower(strings.TrimSpace(b.String()))
	return whitespace.ReplaceAllString(s, " ")
}

// EntityKey generates a stable deduplication key for an extracted entity.
//
// Key strategy:
//
//	Person:  person:email:<email>     (if email known)
//	Company: company:domain:<domain>  (if domain known)
//	Topic:   topic:<normalized label>
//	Fallback: <type>:name:<normalized name>
func EntityKey(e types.ExtractedEntity) string {
	etype := strings.ToLower(e.Type)
	if etype == "" {
		etype = "unknown"
	}

	if etype == "person" && e.Email != "" {
		return "person:email:" + strings.ToLower(strings.TrimSpace(e.Email))
	}

	if etype == "company" && e.Domain != "" {
		return "company:domain:" + strings.ToLower(strings.TrimSpace(e.Domain))
	}

	if etype == "topic" {
		return "topic:" + Normalize(e.Name)
	}

	return fmt.Sprintf("%s:name:%s", etype, Normalize(e.Name))
}
