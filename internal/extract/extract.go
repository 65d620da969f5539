// Package extract parses the WOKO room board into listings.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Europe/Zurich must resolve on minimal images.

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/listing"
)

// DefaultSelector matches the detail-page anchors on the board.
const DefaultSelector = `a[href*="/zimmer-in-zuerich-details/"]`

var (
	trailingID = regexp.MustCompile(`/(\d+)$`)
	recordText = regexp.MustCompile(
		`(?i)^(?P<title>.+?)\s+(?P<date>\d{2}\.\d{2}\.\d{4})\s+(?P<time>\d{2}:\d{2})\s+(?P<type>Tenant|Sublet)\s+wanted`,
	)
)

// Config controls the extractor.
type Config struct {
	// Origin resolves relative links, e.g. https://woko.ch.
	Origin string
	// Selector picks listing anchors; DefaultSelector when empty.
	Selector string
	// Location is the wall-clock zone of the board; Europe/Zurich when nil.
	Location *time.Location
}

// Extractor implements listing.Extractor with goquery.
type Extractor struct {
	origin   *url.URL
	selector string
	loc      *time.Location
	logger   *zap.Logger
}

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) (*Extractor, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin must be an absolute URL, got %q", cfg.Origin)
	}
	selector := cfg.Selector
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	loc := cfg.Location
	if loc == nil {
		loc, err = time.LoadLocation("Europe/Zurich")
		if err != nil {
			return nil, fmt.Errorf("load Europe/Zurich: %w", err)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{origin: origin, selector: selector, loc: loc, logger: logger}, nil
}

// Parse returns the listings found in raw, in page order, first occurrence
// per id. Anchors that do not form a complete record are skipped.
func (e *Extractor) Parse(raw []byte) ([]listing.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Parse("read board markup", err)
	}

	var (
		out     []listing.Listing
		seen    = make(map[int64]struct{})
		skipped int
	)
	doc.Find(e.selector).Each(func(_ int, sel *goquery.Selection) {
		l, err := e.parseAnchor(sel)
		if err != nil {
			skipped++
			e.logger.Debug("skipping anchor", zap.Error(err))
			return
		}
		if _, dup := seen[l.ID]; dup {
			return
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	})
	e.logger.Info("extracted listings", zap.Int("listings", len(out)), zap.Int("skipped", skipped))
	return out, nil
}

func (e *Extractor) parseAnchor(sel *goquery.Selection) (listing.Listing, error) {
	href, _ := sel.Attr("href")
	href = strings.TrimSpace(href)
	idMatch := trailingID.FindStringSubmatch(href)
	if idMatch == nil {
		return listing.Listing{}, fmt.Errorf("href %q has no trailing id", href)
	}
	id, err := strconv.ParseInt(idMatch[1], 10, 64)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("href %q: %w", href, err)
	}

	text := anchorText(sel)
	m := recordText.FindStringSubmatch(text)
	if m == nil {
		return listing.Listing{}, fmt.Errorf("anchor %d text %q does not match record layout", id, text)
	}
	title := m[recordText.SubexpIndex("title")]
	stamp := m[recordText.SubexpIndex("date")] + " " + m[recordText.SubexpIndex("time")]
	local, err := time.ParseInLocation("02.01.2006 15:04", stamp, e.loc)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("anchor %d: parse %q: %w", id, stamp, err)
	}
	typ, err := listing.ParseType(m[recordText.SubexpIndex("type")])
	if err != nil {
		return listing.Listing{}, fmt.Errorf("anchor %d: %w", id, err)
	}
	link, err := e.absolute(href)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("anchor %d: %w", id, err)
	}
	return listing.New(id, title, local, typ, link)
}

func (e *Extractor) absolute(href string) (string, error) {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return e.origin.ResolveReference(ref).String(), nil
}

// anchorText joins the trimmed descendant text nodes with single spaces.
func anchorText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
