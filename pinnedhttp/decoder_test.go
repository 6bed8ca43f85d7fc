package pinnedhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus int
		wantHeader map[string]string
		wantBody   string
	}{
		{
			name:       "given well-formed response, then status headers and body are parsed",
			raw:        "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nhello",
			wantStatus: 200,
			wantHeader: map[string]string{"Content-Type": "text/plain"},
			wantBody:   "hello",
		},
		{
			name:       "given duplicate headers, then last occurrence wins",
			raw:        "HTTP/1.1 200 OK\r\nFoo: 1\r\nFoo: 2\r\n\r\n",
			wantStatus: 200,
			wantHeader: map[string]string{"Foo": "2"},
			wantBody:   "",
		},
		{
			name:       "given no separator, then status zero and whole buffer is body",
			raw:        "garbage without separator\r\nstill garbage",
			wantStatus: 0,
			wantHeader: map[string]string{},
			wantBody:   "garbage without separator\r\nstill garbage",
		},
		{
			name:       "given unparsable status, then status zero with headers kept",
			raw:        "HTTP/1.1 abc Weird\r\nX: y\r\n\r\nbody",
			wantStatus: 0,
			wantHeader: map[string]string{"X": "y"},
			wantBody:   "body",
		},
		{
			name:       "given header line without colon, then it is skipped",
			raw:        "HTTP/1.0 404 Not Found\r\nnot-a-header\r\nServer:  nginx  \r\n\r\n",
			wantStatus: 404,
			wantHeader: map[string]string{"Server": "nginx"},
			wantBody:   "",
		},
		{
			name:       "given value containing colons, then split on first colon only",
			raw:        "HTTP/1.1 301 Moved\r\nLocation: https://example.com:8443/x\r\n\r\n",
			wantStatus: 301,
			wantHeader: map[string]string{"Location": "https://example.com:8443/x"},
			wantBody:   "",
		},
		{
			name:       "given body containing another blank line, then body is kept verbatim",
			raw:        "HTTP/1.1 200 OK\r\n\r\na\r\n\r\nb",
			wantStatus: 200,
			wantHeader: map[string]string{},
			wantBody:   "a\r\n\r\nb",
		},
		{
			name:       "given empty buffer, then empty response",
			raw:        "",
			wantStatus: 0,
			wantHeader: map[string]string{},
			wantBody:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeResponse([]byte(tt.raw))

			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantHeader, got.Header.Map())
			assert.Equal(t, tt.wantBody, string(got.Body))
		})
	}
}

func TestDecodeResponse_IsIdempotent(t *testing.T) {
	raw := []byte("HTTP/1.1 201 Created\r\nA: 1\r\nB: 2\r\na: 3\r\n\r\npayload")

	first := DecodeResponse(raw)
	second := DecodeResponse(raw)

	assert.Equal(t, first, second)
	assert.Equal(t, "payload", string(raw[len(raw)-7:]), "input untouched")
}

func TestDecodeResponse_BodyIsCopied(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\n\r\nabc")

	got := DecodeResponse(raw)
	raw[len(raw)-1] = 'z'

	assert.Equal(t, "abc", string(got.Body))
}

func TestHeader(t *testing.T) {
	var h Header

	h.Set("Content-Type", "text/plain")
	h.Set("X-Id", "1")
	h.Set("content-type", "application/json")

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, "application/json", h.Get("CONTENT-TYPE"))
	assert.Equal(t, []HeaderField{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "X-Id", Value: "1"},
	}, h.Fields())

	_, ok := h.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, "", Header{}.Get("anything"))
}

func TestResponse_Mismatch(t *testing.T) {
	assert.False(t, (&Response{}).Mismatch())
}
