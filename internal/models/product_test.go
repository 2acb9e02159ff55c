package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSetRejectsUnknownField(t *testing.T) {
	r := NewRecord([]string{FieldHandle, FieldTitle}, nil)

	require.NoError(t, r.SetText(FieldHandle, "sixtyfour"))
	err := r.SetText("Not A Column", "x")

	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Equal(t, "sixtyfour", r.Handle())
	assert.False(t, r.Has("Not A Column"))
}

func TestRecordMarshalKeepsTemplateOrder(t *testing.T) {
	r := NewRecord([]string{"Title", "Handle", "Variant SKU"}, nil)
	require.NoError(t, r.SetText("Handle", "h"))
	require.NoError(t, r.Set("Variant SKU", List([]string{"A", "B"})))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Title":"","Handle":"h","Variant SKU":["A","B"]}`, string(data))
	assert.Equal(t, 2, r.Rows())
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord([]string{FieldTags}, map[string]Value{FieldTags: List([]string{"a"})})
	c := r.Clone()
	c.Get(FieldTags).Items()[0] = "changed"

	assert.Equal(t, "a", r.Get(FieldTags).At(0))
}

func TestValueAt(t *testing.T) {
	scalar := Text("x")
	assert.Equal(t, "x", scalar.At(0))
	assert.Equal(t, "", scalar.At(1))
	assert.Equal(t, 1, scalar.Len())

	list := List([]string{"a", "b"})
	assert.Equal(t, "b", list.At(1))
	assert.Equal(t, "", list.At(2))
	assert.Equal(t, "a, b", list.String())
}

func TestPayloadIDAcceptsNumbersAndStrings(t *testing.T) {
	var p ProductPayload
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7345123456789}`), &p))
	assert.Equal(t, "7345123456789", p.ID.String())

	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc"}`), &p))
	assert.Equal(t, "abc", p.ID.String())
}

func TestVariantImageSrcHandlesNullImage(t *testing.T) {
	var v Variant
	require.NoError(t, json.Unmarshal([]byte(`{"featured_image": null, "option1": null}`), &v))
	assert.Equal(t, "", v.ImageSrc())
	assert.Equal(t, "", v.Option(1))
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &NetworkError{URL: "u", Err: cause}, cause)
	assert.ErrorIs(t, &ExtractionError{URL: "u", Err: cause}, cause)
	assert.ErrorIs(t, &StoreError{Op: "replace", Err: cause}, cause)
	assert.Contains(t, (&NetworkError{URL: "u", StatusCode: 503}).Error(), "503")
}
