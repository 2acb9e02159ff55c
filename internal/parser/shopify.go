package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/sanitizer"
)

// ShopifyParser extracts product pages of a Shopify storefront. Pages that
// embed the product JSON take their identity from it; the rest fall back to
// the DOM and the URL.
type ShopifyParser struct {
	template  *catalog.Template
	selectors Selectors
	sanitizer *sanitizer.Sanitizer
	vendor    string
	logger    *slog.Logger
}

type Options struct {
	Selectors Selectors
	Vendor    string
	// AttributePrefix is stripped from description markup.
	AttributePrefix string
}

func NewShopifyParser(tmpl *catalog.Template, opts Options, logger *slog.Logger) *ShopifyParser {
	defaults := DefaultSelectors()
	sel := opts.Selectors
	if sel.ProductSection == "" {
		sel.ProductSection = defaults.ProductSection
	}
	if sel.Heading == "" {
		sel.Heading = defaults.Heading
	}
	if sel.Breadcrumb == "" {
		sel.Breadcrumb = defaults.Breadcrumb
	}
	if sel.Description == "" {
		sel.Description = defaults.Description
	}
	if sel.OptionLabel == "" {
		sel.OptionLabel = defaults.OptionLabel
	}
	if sel.Payload == "" {
		sel.Payload = defaults.Payload
	}
	if opts.Vendor == "" {
		opts.Vendor = DefaultVendor
	}

	return &ShopifyParser{
		template:  tmpl,
		selectors: sel,
		sanitizer: sanitizer.New(opts.AttributePrefix),
		vendor:    opts.Vendor,
		logger:    logger.With("component", "parser"),
	}
}

func (p *ShopifyParser) ParseProductPage(pageURL string, html []byte) (*Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &models.ExtractionError{URL: pageURL, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}

	section := doc.Find(p.selectors.ProductSection).First()
	if section.Length() == 0 {
		return nil, &models.ExtractionError{URL: pageURL, Err: ErrProductSectionNotFound}
	}

	payload, err := p.extractPayload(doc)
	if err != nil {
		return nil, &models.ExtractionError{URL: pageURL, Err: err}
	}

	product := &Product{
		URL:         pageURL,
		Record:      p.template.Clone(),
		Payload:     payload,
		OptionNames: p.extractOptionNames(doc),
	}
	rec := product.Record
	crumbs := p.extractBreadcrumb(doc)

	fields := map[string]string{
		models.FieldVendor: p.vendor,
	}
	if payload != nil {
		handle := payload.ID.String()
		if handle == "" {
			handle = handleFromURL(pageURL)
		}
		fields[models.FieldHandle] = handle
		fields[models.FieldTitle] = payload.Title
		fields[models.FieldType] = payload.Type
		fields[models.FieldTags] = strings.Join(payload.Tags, ", ")
		fields[models.FieldProductCategory] = categoryPath(crumbs, true)
	} else {
		fields[models.FieldHandle] = handleFromURL(pageURL)
		fields[models.FieldTitle] = cleanText(section.Find(p.selectors.Heading).First().Text())
		fields[models.FieldType] = ""
		fields[models.FieldProductCategory] = categoryPath(crumbs, false)
	}

	if desc := doc.Find(p.selectors.Description).First(); desc.Length() > 0 {
		inner, err := desc.Html()
		if err != nil {
			return nil, &models.ExtractionError{URL: pageURL, Err: fmt.Errorf("failed to render description: %w", err)}
		}
		fields[models.FieldBody] = p.sanitizer.Sanitize(inner)
	} else {
		p.logger.Debug("description container not found", "url", pageURL)
	}

	for i, name := range product.OptionNames {
		if i >= models.MaxOptions {
			break
		}
		fields[models.OptionName(i+1)] = name
	}

	for field, value := range fields {
		if err := rec.SetText(field, value); err != nil {
			return nil, &models.ExtractionError{URL: pageURL, Err: err}
		}
	}

	p.logger.Debug("extracted product",
		"url", pageURL,
		"handle", rec.Handle(),
		"hasPayload", payload != nil,
		"options", len(product.OptionNames),
	)

	return product, nil
}

// extractPayload returns nil when the page has no payload node.
func (p *ShopifyParser) extractPayload(doc *goquery.Document) (*models.ProductPayload, error) {
	node := doc.Find(p.selectors.Payload).First()
	if node.Length() == 0 {
		return nil, nil
	}

	raw := strings.TrimSpace(node.Text())
	if raw == "" {
		return nil, fmt.Errorf("%w: empty script", ErrMalformedPayload)
	}

	var payload models.ProductPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &payload, nil
}

// extractOptionNames reads every option label in document order, keeping the
// text before the colon ("Color: Red" gives "Color").
func (p *ShopifyParser) extractOptionNames(doc *goquery.Document) []string {
	var names []string
	doc.Find(p.selectors.OptionLabel).Each(func(_ int, s *goquery.Selection) {
		name, _, _ := strings.Cut(s.Text(), ":")
		names = append(names, cleanText(name))
	})
	return names
}

func (p *ShopifyParser) extractBreadcrumb(doc *goquery.Document) []string {
	text := doc.Find(p.selectors.Breadcrumb).First().Text()
	var crumbs []string
	for _, part := range strings.Split(text, "/") {
		if part = cleanText(part); part != "" {
			crumbs = append(crumbs, part)
		}
	}
	return crumbs
}

// categoryPath joins breadcrumb segments with " > ". Trimming drops the root
// and the leaf, which is the product itself.
func categoryPath(crumbs []string, trim bool) string {
	if trim {
		if len(crumbs) <= 2 {
			return ""
		}
		crumbs = crumbs[1 : len(crumbs)-1]
	}
	return strings.Join(crumbs, " > ")
}

// handleFromURL is the last path segment without the query string.
func handleFromURL(pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil && u.Path != "" {
		if base := path.Base(strings.TrimSuffix(u.Path, "/")); base != "." && base != "/" {
			return base
		}
	}
	last := pageURL[strings.LastIndex(pageURL, "/")+1:]
	last, _, _ = strings.Cut(last, "?")
	return last
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
