package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/decentraland/catalyst-client-sub000/model"
)

// MaxResponseSize bounds JSON response reads so a misbehaving server cannot
// exhaust memory. Content downloads use MaxContentSize.
const MaxResponseSize int64 = 256 << 20

// MaxContentSize bounds FetchBuffer reads.
const MaxContentSize int64 = 1 << 30

// maxErrorBody is how much of a non-2xx body is kept in the error.
const maxErrorBody = 4 << 10

// HTTPConfig holds configuration for NewHTTP.
type HTTPConfig struct {
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// UserAgent is sent on every request when non-empty.
	UserAgent string
}

// HTTP is the default Transport over net/http.
type HTTP struct {
	client    *http.Client
	logger    *slog.Logger
	userAgent string
}

var _ Transport = (*HTTP)(nil)

// NewHTTP returns an HTTP transport.
func NewHTTP(config HTTPConfig) *HTTP {
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{client: client, logger: logger, userAgent: config.UserAgent}
}

// CloseIdleConnections drops pooled connections.
func (h *HTTP) CloseIdleConnections() {
	h.client.CloseIdleConnections()
}

func (h *HTTP) FetchJSON(ctx context.Context, url string, opts Options, out any) error {
	var body []byte
	err := Retry(ctx, opts, h.logger.With("url", url), func(ctx context.Context) error {
		var err error
		body, err = h.do(ctx, http.MethodGet, url, nil, "", MaxResponseSize)
		return err
	})
	if err != nil {
		return err
	}
	return decode(url, body, out)
}

func (h *HTTP) FetchBuffer(ctx context.Context, url string, opts Options) ([]byte, error) {
	var body []byte
	err := Retry(ctx, opts, h.logger.With("url", url), func(ctx context.Context) error {
		var err error
		body, err = h.do(ctx, http.MethodGet, url, nil, "", MaxContentSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// PostMultipart sends fields then files as multipart/form-data. The body is
// rebuilt for every attempt.
func (h *HTTP) PostMultipart(ctx context.Context, url string, fields []Field, files []File, opts Options, out any) error {
	var body []byte
	err := Retry(ctx, opts, h.logger.With("url", url), func(ctx context.Context) error {
		payload, contentType, err := encodeMultipart(fields, files)
		if err != nil {
			return err
		}
		body, err = h.do(ctx, http.MethodPost, url, payload, contentType, MaxResponseSize)
		return err
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(url, body, out)
}

func (h *HTTP) do(ctx context.Context, method, url string, payload io.Reader, contentType string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("invalid request url %q: %v", url, err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, model.NewTransportError(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, model.NewTransportError(url, resp.StatusCode, errors.New(strings.TrimSpace(string(msg))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, model.NewTransportError(url, 0, fmt.Errorf("reading response body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, model.NewTransportError(url, resp.StatusCode, fmt.Errorf("response body exceeds %d bytes", limit))
	}
	h.logger.Debug("request completed", "method", method, "url", url, "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func decode(url string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.Error{Kind: model.KindInternal, Message: "decoding response", URL: url, Cause: err}
	}
	return nil
}

func encodeMultipart(fields []Field, files []File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", model.NewInternalError("writing multipart field", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", model.NewInternalError("creating multipart file", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", model.NewInternalError("writing multipart file", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", model.NewInternalError("closing multipart body", err)
	}
	return &buf, w.FormDataContentType(), nil
}
