package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Catalog field names populated by the pipeline. The catalog template may
// define more fields than these; it must define at least these.
const (
	FieldHandle                = "Handle"
	FieldTitle                 = "Title"
	FieldBody                  = "Body (HTML)"
	FieldVendor                = "Vendor"
	FieldProductCategory       = "Product Category"
	FieldType                  = "Type"
	FieldTags                  = "Tags"
	FieldVariantSKU            = "Variant SKU"
	FieldVariantGrams          = "Variant Grams"
	FieldVariantInventoryQty   = "Variant Inventory Qty"
	FieldVariantImage          = "Variant Image"
	FieldVariantPrice          = "Variant Price"
	FieldVariantCompareAtPrice = "Variant Compare At Price"
	FieldCostPerItem           = "Cost per item"
	FieldCustomLabel           = "Google Shopping / Custom Label 0"
)

// MaxOptions is the number of option columns the catalog format supports.
const MaxOptions = 3

// OptionNoValue is the literal string the storefront emits for an unused
// variant option slot.
const OptionNoValue = "None"

func OptionName(n int) string {
	return fmt.Sprintf("Option%d Name", n)
}

func OptionValue(n int) string {
	return fmt.Sprintf("Option%d Value", n)
}

// FetchResult is the raw markup retrieved for one URL.
type FetchResult struct {
	URL  string `json:"url"`
	HTML []byte `json:"-"`
}

// ProductPayload is the product JSON some pages embed in a script tag.
type ProductPayload struct {
	ID       PayloadID `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Tags     []string  `json:"tags"`
	Variants []Variant `json:"variants"`
}

// PayloadID accepts both numeric and string product ids.
type PayloadID string

func (id *PayloadID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PayloadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid product id %s: %w", data, err)
	}
	*id = PayloadID(n.String())
	return nil
}

func (id PayloadID) String() string {
	return string(id)
}

type Variant struct {
	Option1       string         `json:"option1"`
	Option2       string         `json:"option2"`
	Option3       string         `json:"option3"`
	SKU           string         `json:"sku"`
	Weight        float64        `json:"weight"`
	Price         float64        `json:"price"`
	Available     bool           `json:"available"`
	FeaturedImage *FeaturedImage `json:"featured_image"`
}

type FeaturedImage struct {
	Src string `json:"src"`
}

// Option returns option n (1-based) of the variant.
func (v Variant) Option(n int) string {
	switch n {
	case 1:
		return v.Option1
	case 2:
		return v.Option2
	case 3:
		return v.Option3
	}
	return ""
}

func (v Variant) ImageSrc() string {
	if v.FeaturedImage == nil {
		return ""
	}
	return v.FeaturedImage.Src
}

// Value is a catalog field value: either a scalar string or an ordered list
// of strings aligned by variant position.
type Value struct {
	text  string
	items []string
	list  bool
}

func Text(s string) Value {
	return Value{text: s}
}

func List(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{items: cp, list: true}
}

func (v Value) IsList() bool {
	return v.list
}

func (v Value) Text() string {
	return v.text
}

func (v Value) Items() []string {
	return v.items
}

// Len is the number of list items, or 1 for a scalar.
func (v Value) Len() int {
	if v.list {
		return len(v.items)
	}
	return 1
}

// At returns list item i. A scalar only answers for i == 0.
func (v Value) At(i int) string {
	if !v.list {
		if i == 0 {
			return v.text
		}
		return ""
	}
	if i < 0 || i >= len(v.items) {
		return ""
	}
	return v.items[i]
}

func (v Value) String() string {
	if v.list {
		return strings.Join(v.items, ", ")
	}
	return v.text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Text("")
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = List(items)
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	default:
		// numbers and booleans keep their literal text
		*v = Text(string(data))
	}
	return nil
}

// Record is one product shaped by the catalog template. Field order is the
// template's column order.
type Record struct {
	fields []string
	values map[string]Value
}

// NewRecord creates a record with the given fields in order. Values missing
// from defaults start as empty strings.
func NewRecord(fields []string, defaults map[string]Value) *Record {
	r := &Record{
		fields: make([]string, len(fields)),
		values: make(map[string]Value, len(fields)),
	}
	copy(r.fields, fields)
	for _, f := range fields {
		if v, ok := defaults[f]; ok {
			if v.list {
				v = List(v.items)
			}
			r.values[f] = v
		} else {
			r.values[f] = Text("")
		}
	}
	return r
}

func (r *Record) Fields() []string {
	return r.fields
}

func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

func (r *Record) Get(field string) Value {
	return r.values[field]
}

// Set assigns a field. Fields absent from the template are rejected.
func (r *Record) Set(field string, v Value) error {
	if _, ok := r.values[field]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	r.values[field] = v
	return nil
}

func (r *Record) SetText(field, s string) error {
	return r.Set(field, Text(s))
}

func (r *Record) Handle() string {
	return r.values[FieldHandle].Text()
}

// Rows is the number of export rows the record expands to: the longest list
// value, and at least one.
func (r *Record) Rows() int {
	rows := 1
	for _, v := range r.values {
		if v.IsList() && len(v.items) > rows {
			rows = len(v.items)
		}
	}
	return rows
}

func (r *Record) Clone() *Record {
	return NewRecord(r.fields, r.values)
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Report is the outcome of a batch run that did not hit a fatal error.
type Report struct {
	RunID      string             `json:"run_id"`
	Fetched    int                `json:"fetched"`
	Records    []*Record          `json:"records"`
	Failures   []*ExtractionError `json:"failures"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

func (r *Report) Summary() string {
	return "fetched=" + strconv.Itoa(r.Fetched) +
		" records=" + strconv.Itoa(len(r.Records)) +
		" failures=" + strconv.Itoa(len(r.Failures))
}
