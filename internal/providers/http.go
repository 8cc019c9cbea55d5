package providers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	errorBodyPreview   = 512
)

// Option configures the HTTP client handed to the provider SDKs.
type Option func(*httpOptions)

type httpOptions struct {
	client *http.Client
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *httpOptions) {
		if client != nil {
			o.client = client
		}
	}
}

// WithTimeout sets the default client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *httpOptions) {
		if timeout > 0 {
			o.client = &http.Client{Timeout: timeout}
		}
	}
}

func buildHTTPOptions(opts []Option) httpOptions {
	o := httpOptions{client: &http.Client{Timeout: defaultHTTPTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// errorMessage extracts the provider's message from the common error shapes:
// {"error":{"message":...}}, {"error":"..."} and {"detail":"..."}.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error  json.RawMessage `json:"error"`
		Detail string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
				return flat
			}
		}
		if envelope.Detail != "" {
			return envelope.Detail
		}
	}
	return truncate(strings.TrimSpace(string(raw)), errorBodyPreview)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
