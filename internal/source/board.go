package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/job-tracker/internal/db"
	"github.com/jonathan/job-tracker/internal/fetch"
)

// listingSelectors are tried in order to locate posting cards on a board page.
var listingSelectors = []string{
	"[data-job-id]",
	".job-listing",
	".job-card",
	"li.posting",
	"article.job",
}

// BoardConfig configures the HTML job board source.
type BoardConfig struct {
	// BaseURL is the board search endpoint; keywords and location are added
	// as query parameters.
	BaseURL string
	// UseBrowser falls back to headless rendering when the static HTML
	// carries no listings (JS-rendered boards).
	UseBrowser bool
	// Timeout bounds each page fetch.
	Timeout time.Duration
	Verbose bool
}

// BoardSource implements Source over an HTML job board.
type BoardSource struct {
	config BoardConfig
}

// NewBoardSource creates a board-backed job source.
func NewBoardSource(config BoardConfig) *BoardSource {
	if config.Timeout == 0 {
		config.Timeout = fetch.DefaultTimeout
	}
	return &BoardSource{config: config}
}

// Search fetches the board's search page for the owner's settings and parses
// the listings. Transport failures surface as ErrSourceUnavailable.
func (s *BoardSource) Search(ctx context.Context, settings *db.WorkflowSettings) ([]RawPosting, error) {
	searchURL, err := s.buildSearchURL(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	opts := fetch.DefaultOptions()
	opts.Timeout = s.config.Timeout

	result, err := fetch.URL(ctx, searchURL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	html := result.HTML
	postings, err := parseListings(html, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	// JS-rendered boards serve an empty shell over plain HTTP.
	if len(postings) == 0 && s.config.UseBrowser {
		rendered, berr := fetch.WithBrowser(ctx, searchURL, s.config.Timeout, s.config.Verbose)
		if berr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, berr)
		}
		postings, err = parseListings(rendered, searchURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
	}

	return postings, nil
}

// buildSearchURL adds keywords, location and filters as query parameters.
func (s *BoardSource) buildSearchURL(settings *db.WorkflowSettings) (string, error) {
	u, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if len(settings.Keywords) > 0 {
		q.Set("q", strings.Join(settings.Keywords, " "))
	}
	if settings.Location != "" {
		q.Set("location", settings.Location)
	}
	for key, value := range settings.Filters {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// parseListings extracts postings from board HTML.
func parseListings(html, pageURL string) ([]RawPosting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse board HTML: %w", err)
	}

	base, _ := url.Parse(pageURL)

	var cards *goquery.Selection
	for _, selector := range listingSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			cards = selection
			break
		}
	}
	if cards == nil {
		return nil, nil
	}

	var postings []RawPosting
	cards.Each(func(_ int, card *goquery.Selection) {
		posting := RawPosting{
			Title:       firstText(card, ".job-title, .title, h2, h3"),
			Company:     firstText(card, ".company, .company-name, .employer"),
			Description: fetch.CleanWhitespace(firstText(card, ".description, .summary, p")),
		}

		if href, ok := card.Find("a").First().Attr("href"); ok {
			posting.URL = resolveURL(base, href)
		}

		if id, ok := card.Attr("data-job-id"); ok && id != "" {
			posting.ExternalID = id
		} else {
			posting.ExternalID = externalIDFromURL(posting.URL)
		}

		if posting.ExternalID != "" && posting.Title != "" {
			postings = append(postings, posting)
		}
	})

	return postings, nil
}

// firstText returns the trimmed text of the first match for selector.
func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// resolveURL makes a card link absolute against the page URL.
func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// externalIDFromURL derives a dedup key from the posting link's path.
func externalIDFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Path == "" {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
