// Package common provides shared adapter utilities for goAuthn.
//
// Concurrency: All exported types and functions are safe for concurrent use.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingRequiredMetadata is returned when a required header or metadata
// key is absent or blank.
var ErrMissingRequiredMetadata = errors.New("missing required metadata")

// RequiredMetadata defines mandatory metadata keys that must be present
// in a request before authentication proceeds.
type RequiredMetadata struct {
	// Keys lists required metadata/header names.
	// HTTP header lookups are case-insensitive; gRPC keys are lower-cased.
	Keys []string

	// Enabled controls whether metadata validation is active.
	Enabled bool
}

// MetadataExtractor abstracts reading metadata from different transports.
type MetadataExtractor interface {
	Get(key string) (string, bool)
}

// Validate checks that all required keys are present and non-empty.
func (r RequiredMetadata) Validate(ex MetadataExtractor) error {
	if !r.Enabled {
		return nil
	}
	for _, key := range r.Keys {
		val, ok := ex.Get(key)
		if !ok || strings.TrimSpace(val) == "" {
			return fmt.Errorf("%w: %s", ErrMissingRequiredMetadata, key)
		}
	}
	return nil
}

// AdapterOptions holds common adapter configuration.
type AdapterOptions struct {
	RequiredMeta RequiredMetadata

	// AllowAnonymous lets requests without credentials through with an
	// empty subject. Requests carrying an invalid token are still rejected.
	AllowAnonymous bool
}

// Option configures an adapter.
type Option func(*AdapterOptions)

// WithRequiredMetadata specifies header or metadata keys that must be
// present before authentication proceeds.
func WithRequiredMetadata(keys ...string) Option {
	return func(o *AdapterOptions) {
		o.RequiredMeta.Keys = keys
		o.RequiredMeta.Enabled = true
	}
}

// WithAnonymous lets requests without credentials through with an empty
// subject.
func WithAnonymous() Option {
	return func(o *AdapterOptions) {
		o.AllowAnonymous = true
	}
}

// BuildOptions applies opts to a zero AdapterOptions.
func BuildOptions(opts []Option) AdapterOptions {
	var o AdapterOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
