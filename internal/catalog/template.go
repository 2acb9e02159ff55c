package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
	"gopkg.in/yaml.v3"
)

var ErrMissingField = errors.New("catalog template is missing a required field")

// Template is the immutable list of catalog columns. Load it once and Clone
// it for every record.
type Template struct {
	fields   []string
	defaults map[string]models.Value
}

// RequiredFields are the columns the pipeline writes.
func RequiredFields() []string {
	fields := []string{
		models.FieldHandle,
		models.FieldTitle,
		models.FieldBody,
		models.FieldVendor,
		models.FieldProductCategory,
		models.FieldType,
		models.FieldTags,
	}
	for n := 1; n <= models.MaxOptions; n++ {
		fields = append(fields, models.OptionName(n), models.OptionValue(n))
	}
	return append(fields,
		models.FieldVariantSKU,
		models.FieldVariantGrams,
		models.FieldVariantInventoryQty,
		models.FieldVariantPrice,
		models.FieldVariantCompareAtPrice,
		models.FieldVariantImage,
		models.FieldCostPerItem,
		models.FieldCustomLabel,
	)
}

// Default returns a template holding exactly the required fields.
func Default() *Template {
	t, _ := New(RequiredFields(), nil)
	return t
}

func New(fields []string, defaults map[string]models.Value) (*Template, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			return nil, fmt.Errorf("duplicate catalog field %q", f)
		}
		seen[f] = true
	}
	for _, f := range RequiredFields() {
		if !seen[f] {
			return nil, fmt.Errorf("%w: %q", ErrMissingField, f)
		}
	}

	t := &Template{
		fields:   make([]string, len(fields)),
		defaults: make(map[string]models.Value, len(defaults)),
	}
	copy(t.fields, fields)
	for k, v := range defaults {
		t.defaults[k] = v
	}
	return t, nil
}

// LoadFile reads a JSON or YAML template. The document is a single object
// whose keys are the column names in order and whose values are defaults.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog template: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func ParseJSON(data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog template: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("catalog template must be a JSON object")
	}

	var fields []string
	defaults := make(map[string]models.Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog template: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in catalog template", tok)
		}
		var v models.Value
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("failed to parse catalog field %q: %w", key, err)
		}
		fields = append(fields, key)
		defaults[key] = v
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse catalog template: %w", err)
	}

	return New(fields, defaults)
}

func ParseYAML(data []byte) (*Template, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog template: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog template must be a YAML mapping")
	}

	root := doc.Content[0]
	var fields []string
	defaults := make(map[string]models.Value)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		node := root.Content[i+1]
		switch node.Kind {
		case yaml.SequenceNode:
			var items []string
			if err := node.Decode(&items); err != nil {
				return nil, fmt.Errorf("failed to parse catalog field %q: %w", key, err)
			}
			defaults[key] = models.List(items)
		case yaml.ScalarNode:
			if node.Tag == "!!null" {
				defaults[key] = models.Text("")
			} else {
				defaults[key] = models.Text(node.Value)
			}
		default:
			return nil, fmt.Errorf("catalog field %q must be a scalar or a list", key)
		}
		fields = append(fields, key)
	}

	return New(fields, defaults)
}

func (t *Template) Fields() []string {
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// Clone returns a fresh record carrying the template's defaults.
func (t *Template) Clone() *models.Record {
	return models.NewRecord(t.fields, t.defaults)
}
