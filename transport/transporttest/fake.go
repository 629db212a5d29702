// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/decentraland/catalyst-client-sub000/model"
	"github.com/decentraland/catalyst-client-sub000/transport"
)

// Call records one request seen by a Fake.
type Call struct {
	Method string
	URL    string
	Fields []transport.Field
	Files  []transport.File
}

// Fake dispatches requests to the configured handlers and records them. A
// request whose handler is nil fails with a KindInternal error so tests notice
// unexpected traffic.
type Fake struct {
	JSON   func(url string) (any, error)
	Buffer func(url string) ([]byte, error)
	Post   func(url string, fields []transport.Field, files []transport.File) (any, error)

	mu    sync.Mutex
	calls []Call
}

var _ transport.Transport = (*Fake)(nil)

// Calls returns a copy of the recorded requests in arrival order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *Fake) FetchJSON(ctx context.Context, url string, _ transport.Options, out any) error {
	f.record(Call{Method: "GET", URL: url})
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.JSON == nil {
		return unexpected("GET", url)
	}
	v, err := f.JSON(url)
	if err != nil {
		return err
	}
	return Assign(out, v)
}

func (f *Fake) FetchBuffer(ctx context.Context, url string, _ transport.Options) ([]byte, error) {
	f.record(Call{Method: "GET", URL: url})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Buffer == nil {
		return nil, unexpected("GET", url)
	}
	return f.Buffer(url)
}

func (f *Fake) PostMultipart(ctx context.Context, url string, fields []transport.Field, files []transport.File, _ transport.Options, out any) error {
	f.record(Call{Method: "POST", URL: url, Fields: fields, Files: files})
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Post == nil {
		return unexpected("POST", url)
	}
	v, err := f.Post(url, fields, files)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return Assign(out, v)
}

// Assign copies v into out through a JSON round trip, the way a real response
// body would be decoded.
func Assign(out, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transporttest: marshal response: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("transporttest: unmarshal response: %w", err)
	}
	return nil
}

func unexpected(method, url string) error {
	return model.NewInternalError(fmt.Sprintf("transporttest: unexpected %s %s", method, url), nil)
}
