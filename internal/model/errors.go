package model

import "errors"

// Error taxonomy shared by fetchers, enrichment, storage and the pipeline.
var (
	// ErrConfiguration: missing or invalid source config. Not retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrFetch: transient network or upstream failure. Retried next run.
	ErrFetch = errors.New("fetch error")
	// ErrParse: malformed upstream payload. Treated like ErrFetch.
	ErrParse = errors.New("parse error")
	// ErrUnsupportedSource: no fetcher for the source type.
	ErrUnsupportedSource = errors.New("unsupported source type")
	// ErrNoCredential: no usable LLM key. Fatal to the whole user run.
	ErrNoCredential = errors.New("no API key")
	// ErrDuplicate: uniqueness conflict on insert. A benign skip.
	ErrDuplicate = errors.New("duplicate")
	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
)
