package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"intelliquiz/internal/config"
	"intelliquiz/internal/domain"
	"intelliquiz/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const maxHTMLBodyBytes = 4 << 20 // 4 MiB

// WikipediaExtractor fetches Wikipedia-style article pages and extracts the
// title, leading paragraphs and section headings.
type WikipediaExtractor struct {
	client         *resty.Client // full extraction, longer timeout
	validateClient *resty.Client // pre-flight checks, shorter timeout
	paragraphLimit int
	userAgent      string
}

var _ domain.ArticleExtractor = (*WikipediaExtractor)(nil)

// NewWikipediaExtractor builds an extractor from configuration.
func NewWikipediaExtractor(cfg config.ExtractorConfig) *WikipediaExtractor {
	return &WikipediaExtractor{
		client:         resty.New().SetTimeout(cfg.Timeout),
		validateClient: resty.New().SetTimeout(cfg.ValidateTimeout),
		paragraphLimit: cfg.ParagraphLimit,
		userAgent:      cfg.UserAgent,
	}
}

// Extract implements domain.ArticleExtractor.
func (e *WikipediaExtractor) Extract(ctx context.Context, url string) (*domain.ArticleContent, error) {
	body, err := e.fetch(ctx, e.client, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewPageParseError(fmt.Sprintf("failed to parse HTML: %v", err))
	}

	title := findTitle(doc)
	if title == "" {
		return nil, domain.NewPageParseError("article title not found")
	}

	container := doc.Find("div#mw-content-text").First()
	if container.Length() == 0 {
		return nil, domain.NewPageParseError("article content container not found")
	}

	var paragraphs []string
	container.ChildrenFiltered("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= e.paragraphLimit {
			return false
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
		return true
	})

	var headings []string
	container.Find("h2").Each(func(_ int, s *goquery.Selection) {
		heading := strings.TrimSpace(strings.ReplaceAll(s.Text(), "[edit]", ""))
		if heading != "" {
			headings = append(headings, heading)
		}
	})

	logger.Get().Debug("Extracted article content",
		zap.String("url", url),
		zap.String("title", title),
		zap.Int("paragraphs", len(paragraphs)),
		zap.Int("headings", len(headings)),
	)

	return &domain.ArticleContent{
		Title:           title,
		BodyText:        strings.Join(paragraphs, "\n"),
		SectionHeadings: headings,
		RawMarkup:       string(body),
	}, nil
}

// ValidateOnly implements domain.ArticleExtractor. It performs only the
// fetch and title lookup, with the shorter timeout.
func (e *WikipediaExtractor) ValidateOnly(ctx context.Context, url string) (string, error) {
	body, err := e.fetch(ctx, e.validateClient, url)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", domain.NewPageParseError(fmt.Sprintf("failed to parse HTML: %v", err))
	}

	title := findTitle(doc)
	if title == "" {
		return "", domain.NewPageParseError("article title not found")
	}
	return title, nil
}

func (e *WikipediaExtractor) fetch(ctx context.Context, client *resty.Client, url string) ([]byte, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("User-Agent", e.userAgent).
		Get(url)
	if err != nil {
		return nil, domain.NewFetchError(url, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, domain.NewFetchError(url, fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return body, nil
}

func findTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("h1#firstHeading").First().Text())
}
