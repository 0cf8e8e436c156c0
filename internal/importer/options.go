package importer

import (
	"os"
	"time"
)

// DefaultMaxUploadBytes is the upload limit used when Options.MaxUploadBytes is not set.
const DefaultMaxUploadBytes int64 = 20 << 20

const (
	DefaultBatchSize      = 1000
	DefaultProcessTimeout = 30 * time.Second
)

// Options configures an Importer.
type Options struct {
	MaxUploadBytes int64
	// AllowedExtensions maps a lower-case extension (".csv") to the decoder used for it.
	AllowedExtensions map[string]Format
	// AllowedContentTypes is checked against the declared content type when one is present.
	AllowedContentTypes map[string]struct{}
	TempDir             string
	BatchSize           int
	// ProcessTimeout bounds parsing and normalisation together. Zero disables the bound.
	ProcessTimeout time.Duration
}

// DefaultOptions returns the options matching the service defaults.
func DefaultOptions() Options {
	return Options{
		MaxUploadBytes: DefaultMaxUploadBytes,
		AllowedExtensions: map[string]Format{
			".csv":  FormatCSV,
			".xlsx": FormatXLSX,
		},
		AllowedContentTypes: map[string]struct{}{
			"text/csv":                 {},
			"application/csv":          {},
			"text/plain":               {},
			"application/vnd.ms-excel": {},
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
		},
		TempDir:        os.TempDir(),
		BatchSize:      DefaultBatchSize,
		ProcessTimeout: DefaultProcessTimeout,
	}
}

// withDefaults fills zero values from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = d.MaxUploadBytes
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = d.AllowedExtensions
	}
	if o.AllowedContentTypes == nil {
		o.AllowedContentTypes = d.AllowedContentTypes
	}
	if o.TempDir == "" {
		o.TempDir = d.TempDir
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	return o
}
