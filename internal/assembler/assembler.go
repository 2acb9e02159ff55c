package assembler

import (
	"math"
	"strconv"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// DefaultCustomLabel is written to the custom label column of every record.
const DefaultCustomLabel = "Redcat"

// Restock heuristic: the storefront only exposes availability.
const (
	inStockQty    = "10"
	outOfStockQty = "0"
)

// Fields holds the per-variant columns of one product. The variant lists are
// index-aligned; option value lists skip "None" entries and so may be shorter.
type Fields struct {
	OptionNames  [models.MaxOptions]string
	OptionValues [models.MaxOptions]models.Value
	SKU          []string
	Grams        []string
	InventoryQty []string
	Image        []string
	Cost         []string
	Price        []string
}

// Assemble expands the payload's variants. Only the first MaxOptions option
// names are used. A nil payload yields empty variant lists.
func Assemble(payload *models.ProductPayload, optionNames []string) Fields {
	var variants []models.Variant
	if payload != nil {
		variants = payload.Variants
	}

	f := Fields{
		SKU:          make([]string, 0, len(variants)),
		Grams:        make([]string, 0, len(variants)),
		InventoryQty: make([]string, 0, len(variants)),
		Image:        make([]string, 0, len(variants)),
		Cost:         make([]string, 0, len(variants)),
		Price:        make([]string, 0, len(variants)),
	}

	for i := 0; i < models.MaxOptions; i++ {
		if i < len(optionNames) {
			f.OptionNames[i] = optionNames[i]
		}
		if f.OptionNames[i] == "" {
			f.OptionValues[i] = models.Text("")
			continue
		}
		values := make([]string, 0, len(variants))
		for _, v := range variants {
			opt := v.Option(i + 1)
			if opt == models.OptionNoValue {
				continue
			}
			values = append(values, opt)
		}
		f.OptionValues[i] = models.List(values)
	}

	for _, v := range variants {
		f.SKU = append(f.SKU, v.SKU)
		f.Grams = append(f.Grams, formatAmount(v.Weight/100))
		if v.Available {
			f.InventoryQty = append(f.InventoryQty, inStockQty)
		} else {
			f.InventoryQty = append(f.InventoryQty, outOfStockQty)
		}
		f.Image = append(f.Image, stripScheme(v.ImageSrc()))
		f.Cost = append(f.Cost, formatAmount(v.Price/100))
	}

	for _, cost := range f.Cost {
		f.Price = append(f.Price, GetPrice(cost))
	}

	return f
}

// Apply writes the fields into r along with the fixed columns.
func (f Fields) Apply(r *models.Record, customLabel string) error {
	for i := 0; i < models.MaxOptions; i++ {
		if err := r.SetText(models.OptionName(i+1), f.OptionNames[i]); err != nil {
			return err
		}
		if err := r.Set(models.OptionValue(i+1), f.OptionValues[i]); err != nil {
			return err
		}
	}

	columns := []struct {
		field string
		value models.Value
	}{
		{models.FieldVariantSKU, models.List(f.SKU)},
		{models.FieldVariantGrams, models.List(f.Grams)},
		{models.FieldVariantInventoryQty, models.List(f.InventoryQty)},
		{models.FieldVariantImage, models.List(f.Image)},
		{models.FieldCostPerItem, models.List(f.Cost)},
		{models.FieldVariantPrice, models.List(f.Price)},
		{models.FieldVariantCompareAtPrice, models.Text("")},
		{models.FieldCustomLabel, models.Text(customLabel)},
	}
	for _, c := range columns {
		if err := r.Set(c.field, c.value); err != nil {
			return err
		}
	}
	return nil
}

// GetPrice derives the selling price from a cost: five percent off, two
// decimals. A missing or zero cost prices at "0.00".
func GetPrice(cost string) string {
	cost = strings.TrimSpace(cost)
	if cost == "" || cost == "0.00" {
		return "0.00"
	}
	c, err := strconv.ParseFloat(cost, 64)
	if err != nil || c == 0 {
		return "0.00"
	}
	return strconv.FormatFloat(round2(c-0.05*c), 'f', 2, 64)
}

// stripScheme drops the first two characters, the "//" of a
// protocol-relative URL.
func stripScheme(src string) string {
	if len(src) < 2 {
		return ""
	}
	return src[2:]
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// formatAmount renders Grams and Cost with the shortest decimal ("3400",
// "449.99"), unlike Variant Price which always has two digits.
func formatAmount(x float64) string {
	return strconv.FormatFloat(round2(x), 'f', -1, 64)
}
