package pinnedhttp

import (
	"bytes"
	"maps"
	"net/http"
)

// Target is one request to perform: URL, method, optional headers and body.
// A Target is immutable; constructors copy their inputs.
type Target struct {
	method string
	url    string
	header map[string]string
	body   []byte
}

// NewTarget creates a Target. An empty method means GET. A nil body sends no
// body; a non-nil empty body sends "Content-Length: 0".
func NewTarget(method, rawURL string, header map[string]string, body []byte) Target {
	if method == "" {
		method = http.MethodGet
	}
	t := Target{method: method, url: rawURL}
	if len(header) > 0 {
		t.header = maps.Clone(header)
	}
	if body != nil {
		t.body = bytes.Clone(body)
	}
	return t
}

// Get creates a GET Target.
func Get(rawURL string) Target {
	return NewTarget(http.MethodGet, rawURL, nil, nil)
}

// Post creates a POST Target.
func Post(rawURL string, header map[string]string, body []byte) Target {
	if body == nil {
		body = []byte{}
	}
	return NewTarget(http.MethodPost, rawURL, header, body)
}

// Method returns the HTTP method.
func (t Target) Method() string { return t.method }

// URL returns the raw URL.
func (t Target) URL() string { return t.url }

// Header returns a copy of the caller-supplied headers.
func (t Target) Header() map[string]string { return maps.Clone(t.header) }

// Body returns a copy of the body, or nil when there is none.
func (t Target) Body() []byte { return bytes.Clone(t.body) }
