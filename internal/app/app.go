package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/glabrego/laconic-cli/internal/dom"
	"github.com/glabrego/laconic-cli/internal/storage"
	"github.com/glabrego/laconic-cli/internal/wiki"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type Repository interface {
	RecordVisit(ctx context.Context, visit storage.Visit) error
	ListVisits(ctx context.Context, limit int) ([]storage.Visit, error)
}

// Page is a loaded wiki page. Document is the live tree the popups write
// into.
type Page struct {
	URL        *url.URL
	Title      string
	Document   *goquery.Document
	Background string
}

type Service struct {
	fetcher Fetcher
	repo    Repository
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(fetcher Fetcher, repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, repo: repo, logger: logger, now: time.Now}
}

// OpenPage fetches and parses a page and records it in the history. A
// failure to record is logged and does not fail the call.
func (s *Service) OpenPage(ctx context.Context, rawURL string) (*Page, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return nil, fmt.Errorf("page URL must be http or https: %s", rawURL)
	}

	body, err := s.fetcher.Fetch(ctx, pageURL.String())
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer body.Close()

	doc, err := wiki.ParseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if doc.Find(wiki.SelectorArticle).Length() == 0 {
		s.logger.Warn("Page has no article body", zap.String("url", pageURL.String()))
	}

	page := &Page{
		URL:        pageURL,
		Title:      pageTitle(doc, pageURL),
		Document:   doc,
		Background: pageBackground(doc),
	}

	if s.repo != nil {
		visit := storage.Visit{URL: pageURL.String(), Title: page.Title, VisitedAt: s.now()}
		if err := s.repo.RecordVisit(ctx, visit); err != nil {
			s.logger.Warn("Failed to record visit",
				zap.String("url", visit.URL),
				zap.Error(err))
		}
	}
	s.logger.Info("Page opened",
		zap.String("url", pageURL.String()),
		zap.String("title", page.Title))
	return page, nil
}

// LastVisited returns the most recent page of the history.
func (s *Service) LastVisited(ctx context.Context) (string, bool, error) {
	visits, err := s.History(ctx, 1)
	if err != nil {
		return "", false, err
	}
	if len(visits) == 0 {
		return "", false, nil
	}
	return visits[0].URL, true, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]storage.Visit, error) {
	if s.repo == nil {
		return nil, errors.New("history is not configured")
	}
	visits, err := s.repo.ListVisits(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return visits, nil
}

func pageTitle(doc *goquery.Document, pageURL *url.URL) string {
	if title, ok := wiki.PageTitle(doc); ok && title != "" {
		return title
	}
	if title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " "); title != "" {
		return title
	}
	return pageURL.String()
}

// pageBackground is the background color the article is drawn on, if the
// page names one.
func pageBackground(doc *goquery.Document) string {
	content := doc.Find(wiki.SelectorContent).First()
	if content.Length() == 0 {
		return ""
	}
	color, _ := dom.Style(content.Get(0), "background-color")
	return color
}
