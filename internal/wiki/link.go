package wiki

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	articlePath   = "/pmwiki/pmwiki.php/"
	laconicPrefix = articlePath + "Laconic/"
)

// Pattern decides which links get a summary page and derives its address.
type Pattern struct {
	scheme string
	host   string
	re     *regexp.Regexp
}

func NewPattern(baseURL string) (Pattern, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return Pattern{}, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Host == "" {
		return Pattern{}, fmt.Errorf("base URL has no host: %s", baseURL)
	}
	expr := `^https?://` + regexp.QuoteMeta(parsed.Host) + regexp.QuoteMeta(articlePath) + `[^/]+/([^/]+)$`
	return Pattern{
		scheme: parsed.Scheme,
		host:   parsed.Host,
		re:     regexp.MustCompile(expr),
	}, nil
}

// Rewrite resolves href against base and maps the article's second path
// segment onto the summary namespace. ok is false for links outside the wiki.
func (p Pattern) Rewrite(href string, base *url.URL) (string, bool) {
	if p.re == nil {
		return "", false
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	match := p.re.FindStringSubmatch(ref.String())
	if match == nil {
		return "", false
	}
	return p.scheme + "://" + p.host + laconicPrefix + match[1], true
}

// Resolve returns href as an absolute URL, or "" when it cannot be parsed.
func Resolve(href string, base *url.URL) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}

// HomeURL is the page opened when nothing else was requested.
func HomeURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + articlePath + "Main/HomePage"
}
