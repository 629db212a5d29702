// Package transport defines the network collaborator of the catalyst client
// and a default implementation over net/http.
//
// The core packages never open connections themselves: they receive a
// Transport and per-call Options. Every network-bound call is bounded by a
// per-attempt timeout and a retry budget, so nothing hangs indefinitely.
package transport

import (
	"context"
	"time"
)

// Options bounds one logical request.
type Options struct {
	// Timeout applies to each attempt.
	Timeout time.Duration
	// Attempts is the total number of tries, including the first.
	Attempts int
	// WaitTime is the pause between attempts.
	WaitTime time.Duration
}

// DefaultOptions returns the options used when a caller leaves fields zero.
func DefaultOptions() Options {
	return Options{Timeout: 30 * time.Second, Attempts: 3, WaitTime: 500 * time.Millisecond}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Attempts <= 0 {
		o.Attempts = d.Attempts
	}
	if o.WaitTime < 0 {
		o.WaitTime = 0
	}
	return o
}

// Field is a plain multipart form field.
type Field struct {
	Name  string
	Value string
}

// File is a multipart form file part.
type File struct {
	Field    string
	FileName string
	Content  []byte
}

// Transport performs the HTTP exchanges the client needs.
//
// Implementations retry according to opts and report failures as
// model.KindTransport errors carrying the URL and status.
type Transport interface {
	FetchJSON(ctx context.Context, url string, opts Options, out any) error
	FetchBuffer(ctx context.Context, url string, opts Options) ([]byte, error)
	PostMultipart(ctx context.Context, url string, fields []Field, files []File, opts Options, out any) error
}
