package pinnedhttp

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultUserAgent is sent unless the caller supplies a User-Agent header.
const DefaultUserAgent = "lanepin/1.0"

// endpoint is the transport address derived from a target URL.
type endpoint struct {
	host string // hostname without brackets
	port int
	tls  bool
}

func (e endpoint) address() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// parseTarget validates the URL of t and returns it with its endpoint.
func parseTarget(t Target) (*url.URL, endpoint, error) {
	u, err := url.Parse(t.url)
	if err != nil {
		return nil, endpoint{}, newError(KindInvalidTarget, "encode", err)
	}

	var ep endpoint
	switch strings.ToLower(u.Scheme) {
	case "https":
		ep.tls, ep.port = true, 443
	case "http":
		ep.port = 80
	default:
		return nil, endpoint{}, newError(KindInvalidTarget, "encode",
			fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	ep.host = u.Hostname()
	if ep.host == "" {
		return nil, endpoint{}, newError(KindInvalidTarget, "encode", errors.New("url has no host"))
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, endpoint{}, newError(KindInvalidTarget, "encode", fmt.Errorf("invalid port %q", p))
		}
		ep.port = port
	}
	return u, ep, nil
}

// EncodeRequest builds the raw HTTP/1.1 request for t.
//
// The header block is, in order: Host, Connection: close, User-Agent, the
// caller's headers sorted by name, then Content-Length when a body is present
// and the caller did not set one. Caller-supplied Host and Connection headers
// are ignored; a caller User-Agent replaces userAgent.
func EncodeRequest(t Target, userAgent string) ([]byte, error) {
	u, _, err := parseTarget(t)
	if err != nil {
		return nil, err
	}
	return encodeRequest(u, t, userAgent)
}

func encodeRequest(u *url.URL, t Target, userAgent string) ([]byte, error) {
	method := t.method
	if !validToken(method) {
		return nil, newError(KindInvalidTarget, "encode", fmt.Errorf("invalid method %q", method))
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	names := make([]string, 0, len(t.header))
	hasContentLength := false
	for name, value := range t.header {
		if !validToken(name) || strings.ContainsAny(value, "\r\n") {
			return nil, newError(KindInvalidTarget, "encode", fmt.Errorf("invalid header %q", name))
		}
		switch strings.ToLower(name) {
		case "host", "connection":
			continue
		case "user-agent":
			userAgent = value
			continue
		case "content-length":
			hasContentLength = true
		}
		names = append(names, name)
	}
	sort.Strings(names)

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	var b bytes.Buffer
	b.Grow(128 + len(t.body))
	b.WriteString(method + " " + target + " HTTP/1.1\r\n")
	b.WriteString("Host: " + u.Host + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("User-Agent: " + userAgent + "\r\n")
	for _, name := range names {
		b.WriteString(name + ": " + t.header[name] + "\r\n")
	}
	if t.body != nil && !hasContentLength {
		b.WriteString("Content-Length: " + strconv.Itoa(len(t.body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.Write(t.body)

	return b.Bytes(), nil
}

// validToken reports whether s is a non-empty RFC 9110 token.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
