package parser

import (
	"errors"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	ErrProductSectionNotFound = errors.New("product section not found")
	ErrMalformedPayload       = errors.New("malformed embedded product payload")
)

// DefaultVendor is written to the Vendor column of every record.
const DefaultVendor = "Redcat"

type Parser interface {
	// ParseProductPage returns a page-scoped *models.ExtractionError when the
	// page cannot be turned into a record.
	ParseProductPage(url string, html []byte) (*Product, error)
}

// Product is one extracted page: the record with its product-level fields
// filled in, plus what the assembler needs for the variant columns.
type Product struct {
	URL         string
	Record      *models.Record
	Payload     *models.ProductPayload
	OptionNames []string
}

// HasPayload reports whether the page carried an embedded product payload.
func (p *Product) HasPayload() bool {
	return p.Payload != nil
}

// Selectors locate the page anchors. Any may be a selector group.
type Selectors struct {
	ProductSection string
	Heading        string
	Breadcrumb     string
	Description    string
	OptionLabel    string
	Payload        string
}

func DefaultSelectors() Selectors {
	return Selectors{
		ProductSection: "div.card.card--collapsed.card--sticky",
		Heading:        "h1, h2, h3",
		Breadcrumb:     "nav.breadcrumbs",
		Description:    "div.product-description",
		OptionLabel:    "label.option-label",
		Payload:        "script[data-product-json], script#ProductJson-product-template",
	}
}
