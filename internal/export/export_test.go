package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []string{models.FieldHandle, models.FieldTitle, models.OptionValue(1), models.FieldVariantSKU, models.FieldVariantPrice}

func testRecord(t *testing.T) *models.Record {
	t.Helper()
	rec := models.NewRecord(testFields, nil)
	require.NoError(t, rec.SetText(models.FieldHandle, "999"))
	require.NoError(t, rec.SetText(models.FieldTitle, "Valkyrie MT"))
	require.NoError(t, rec.Set(models.OptionValue(1), models.List([]string{"Blue"})))
	require.NoError(t, rec.Set(models.FieldVariantSKU, models.List([]string{"VALK-BL", "VALK-RD"})))
	require.NoError(t, rec.Set(models.FieldVariantPrice, models.List([]string{"427.49", "427.49"})))
	return rec
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRowsExpandVariants(t *testing.T) {
	rows := Rows(testRecord(t), testFields)

	assert.Equal(t, [][]string{
		{"999", "Valkyrie MT", "Blue", "VALK-BL", "427.49"},
		{"", "", "", "VALK-RD", "427.49"},
	}, rows)
}

func TestRowsWithoutVariants(t *testing.T) {
	rec := models.NewRecord(testFields, nil)
	require.NoError(t, rec.SetText(models.FieldHandle, "sixtyfour"))
	require.NoError(t, rec.Set(models.FieldVariantSKU, models.List(nil)))

	rows := Rows(rec, testFields)

	assert.Equal(t, [][]string{{"sixtyfour", "", "", "", ""}}, rows)
}

func TestCSVSink(t *testing.T) {
	var buf bytes.Buffer
	sink, err := New(FormatCSV, &buf, testFields)
	require.NoError(t, err)

	report := &models.Report{Records: []*models.Record{testRecord(t)}}
	require.NoError(t, sink.Write(context.Background(), report))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, testFields, rows[0])
	assert.Equal(t, "VALK-RD", rows[2][3])
}

func TestCSVSinkEmptyReportWritesHeader(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewCSVSink(&buf, testFields).Write(context.Background(), &models.Report{}))

	assert.Equal(t, "Handle,Title,Option1 Value,Variant SKU,Variant Price\n", buf.String())
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	report := &models.Report{
		RunID:    "run-1",
		Fetched:  2,
		Records:  []*models.Record{testRecord(t)},
		Failures: []*models.ExtractionError{{URL: "https://example.com/products/gone", Err: errors.New("product section not found")}},
	}

	require.NoError(t, NewJSONSink(&buf).Write(context.Background(), report))

	var decoded struct {
		RunID    string                       `json:"run_id"`
		Records  []map[string]json.RawMessage `json:"records"`
		Failures []map[string]string          `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Records, 1)
	assert.JSONEq(t, `["VALK-BL","VALK-RD"]`, string(decoded.Records[0][models.FieldVariantSKU]))
	assert.Equal(t, "product section not found", decoded.Failures[0]["error"])
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *models.Report) error { return f.err }

func TestMultiStopsAtFirstError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	m := Multi{failingSink{boom}, NewJSONSink(&buf)}

	err := m.Write(context.Background(), &models.Report{})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, buf.Len())
}
