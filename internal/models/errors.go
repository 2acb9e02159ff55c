package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownField = errors.New("field not defined by catalog template")

// NetworkError is fatal to a batch: a non-success status or a transport
// failure such as a timeout.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionError is scoped to one page and never aborts a batch.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}{e.URL, msg})
}

// StoreError is a fatal raw store failure. Op names the failing operation.
type StoreError struct {
	Op  string
	URL string
	Err error
}

func (e *StoreError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("raw store %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("raw store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
