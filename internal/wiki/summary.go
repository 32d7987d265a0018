package wiki

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

const (
	SelectorArticle     = "#main-article"
	SelectorArticleLink = "#main-article * a"
	SelectorContent     = "#main-content"

	selectorHeading   = "h1.entry-title"
	selectorMarker    = ".curr-subpage * .laconic-icon"
	selectorParagraph = "#main-article > p"
	titleSeparator    = " / "
)

var (
	ErrNoHeading   = errors.New("page has no entry title")
	ErrNoSummary   = errors.New("no summary for the selected subpage")
	ErrNoParagraph = errors.New("summary page has no paragraph")
)

type Summary struct {
	Title     string
	Paragraph *nethtml.Node
}

func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// PageTitle is the heading text after the namespace separator.
func PageTitle(doc *goquery.Document) (string, bool) {
	heading := doc.Find(selectorHeading).First()
	if heading.Length() == 0 {
		return "", false
	}
	text := normalizeSpace(heading.Text())
	if _, after, found := strings.Cut(text, titleSeparator); found {
		return strings.TrimSpace(after), true
	}
	return text, true
}

// ExtractSummary pulls the title and the leading paragraph out of a summary
// page. ErrNoSummary and ErrNoParagraph mean the page is fine but holds no
// summary to show.
func ExtractSummary(doc *goquery.Document) (Summary, error) {
	title, ok := PageTitle(doc)
	if !ok {
		return Summary{}, ErrNoHeading
	}
	if doc.Find(selectorMarker).Length() == 0 {
		return Summary{}, ErrNoSummary
	}
	paragraph := doc.Find(selectorParagraph).First()
	if paragraph.Length() == 0 {
		return Summary{}, ErrNoParagraph
	}
	return Summary{Title: title, Paragraph: paragraph.Get(0)}, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
