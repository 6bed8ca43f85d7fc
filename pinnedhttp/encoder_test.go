package pinnedhttp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequest(t *testing.T) {
	type args struct {
		target    Target
		userAgent string
	}

	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "given https URL with query and no headers, then request line and host match",
			args: args{target: Get("https://example.com/a?b=c")},
			want: "GET /a?b=c HTTP/1.1\r\n" +
				"Host: example.com\r\n" +
				"Connection: close\r\n" +
				"User-Agent: lanepin/1.0\r\n" +
				"\r\n",
		},
		{
			name: "given empty path, then slash is requested",
			args: args{target: Get("http://example.com")},
			want: "GET / HTTP/1.1\r\n" +
				"Host: example.com\r\n" +
				"Connection: close\r\n" +
				"User-Agent: lanepin/1.0\r\n" +
				"\r\n",
		},
		{
			name: "given explicit port, then host header keeps it",
			args: args{target: Get("http://127.0.0.1:8080/x"), userAgent: "tester/2"},
			want: "GET /x HTTP/1.1\r\n" +
				"Host: 127.0.0.1:8080\r\n" +
				"Connection: close\r\n" +
				"User-Agent: tester/2\r\n" +
				"\r\n",
		},
		{
			name: "given post with body and headers, then headers sorted and content length computed",
			args: args{target: Post("https://httpbin.org/post", map[string]string{
				"X-Trace":      "1",
				"Content-Type": "application/json",
			}, []byte(`{"a":1}`))},
			want: "POST /post HTTP/1.1\r\n" +
				"Host: httpbin.org\r\n" +
				"Connection: close\r\n" +
				"User-Agent: lanepin/1.0\r\n" +
				"Content-Type: application/json\r\n" +
				"X-Trace: 1\r\n" +
				"Content-Length: 7\r\n" +
				"\r\n" +
				`{"a":1}`,
		},
		{
			name: "given caller content length, then it is not recomputed",
			args: args{target: NewTarget("PUT", "http://h/p", map[string]string{
				"Content-Length": "3",
			}, []byte("abc"))},
			want: "PUT /p HTTP/1.1\r\n" +
				"Host: h\r\n" +
				"Connection: close\r\n" +
				"User-Agent: lanepin/1.0\r\n" +
				"Content-Length: 3\r\n" +
				"\r\n" +
				"abc",
		},
		{
			name: "given post without body, then content length is zero",
			args: args{target: Post("http://h/p", nil, nil)},
			want: "POST /p HTTP/1.1\r\n" +
				"Host: h\r\n" +
				"Connection: close\r\n" +
				"User-Agent: lanepin/1.0\r\n" +
				"Content-Length: 0\r\n" +
				"\r\n",
		},
		{
			name: "given caller host, connection and user agent, then fixed headers win except user agent",
			args: args{target: NewTarget("GET", "http://h/", map[string]string{
				"Host":       "evil",
				"connection": "keep-alive",
				"User-Agent": "custom/9",
			}, nil)},
			want: "GET / HTTP/1.1\r\n" +
				"Host: h\r\n" +
				"Connection: close\r\n" +
				"User-Agent: custom/9\r\n" +
				"\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeRequest(tt.args.target, tt.args.userAgent)

			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEncodeRequest_FramingProperty(t *testing.T) {
	targets := []Target{
		Get("https://example.com/"),
		Get("http://example.com/search?q=a%20b"),
		Post("https://example.com/upload", map[string]string{"X-A": "1"}, bytes.Repeat([]byte("z"), 1000)),
		NewTarget("DELETE", "http://[::1]:9000/item/7", nil, nil),
	}

	for _, target := range targets {
		t.Run(target.Method()+" "+target.URL(), func(t *testing.T) {
			got, err := EncodeRequest(target, "")
			require.NoError(t, err)

			assert.True(t, bytes.HasPrefix(got, []byte(target.Method()+" ")))

			headEnd := bytes.Index(got, []byte("\r\n\r\n"))
			require.GreaterOrEqual(t, headEnd, 0)
			assert.Equal(t, target.Body(), nilIfEmpty(got[headEnd+4:]))
			assert.Equal(t, headEnd+4+len(target.Body()), len(got))

			for _, line := range strings.Split(string(got[:headEnd]), "\r\n") {
				assert.NotEmpty(t, line)
			}
		})
	}
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func TestEncodeRequest_InvalidTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Target
	}{
		{name: "given URL without host, then invalid target", target: Get("http:///path")},
		{name: "given relative URL, then invalid target", target: Get("/just/a/path")},
		{name: "given unsupported scheme, then invalid target", target: Get("ftp://example.com/")},
		{name: "given unparseable URL, then invalid target", target: Get("http://[::1")},
		{name: "given bad port, then invalid target", target: Get("http://example.com:99999/")},
		{name: "given method with space, then invalid target", target: NewTarget("GET /x", "http://h/", nil, nil)},
		{
			name:   "given header value with CRLF, then invalid target",
			target: NewTarget("GET", "http://h/", map[string]string{"X-A": "1\r\nX-Injected: 2"}, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeRequest(tt.target, "")

			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrInvalidTarget)
			assert.Equal(t, KindInvalidTarget, KindOf(err))
		})
	}
}

func TestParseTarget_DefaultPorts(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
	}{
		{url: "https://example.com/", wantHost: "example.com", wantPort: 443, wantTLS: true},
		{url: "http://example.com/", wantHost: "example.com", wantPort: 80},
		{url: "HTTPS://example.com:8443/", wantHost: "example.com", wantPort: 8443, wantTLS: true},
		{url: "http://[2001:db8::1]/", wantHost: "2001:db8::1", wantPort: 80},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, ep, err := parseTarget(Get(tt.url))
			require.NoError(t, err)

			assert.Equal(t, tt.wantHost, ep.host)
			assert.Equal(t, tt.wantPort, ep.port)
			assert.Equal(t, tt.wantTLS, ep.tls)
		})
	}
}

func TestTarget_IsImmutable(t *testing.T) {
	header := map[string]string{"A": "1"}
	body := []byte("xyz")
	target := NewTarget("POST", "http://h/", header, body)

	header["A"] = "2"
	body[0] = 'q'
	target.Header()["A"] = "3"
	target.Body()[1] = 'q'

	assert.Equal(t, map[string]string{"A": "1"}, target.Header())
	assert.Equal(t, []byte("xyz"), target.Body())
}
