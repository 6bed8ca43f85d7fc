package pinnedhttp

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/kroma-labs/lanepin/netpath"
)

// HeaderField is one response header.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered, case-insensitive header map with unique keys.
// Setting an existing name keeps its position and replaces the value.
// The zero value is an empty Header.
type Header struct {
	fields []HeaderField
	index  map[string]int
}

// Get returns the value for name, or "" when absent.
func (h Header) Get(name string) string {
	if i, ok := h.index[strings.ToLower(name)]; ok {
		return h.fields[i].Value
	}
	return ""
}

// Lookup returns the value for name and whether it was present.
func (h Header) Lookup(name string) (string, bool) {
	i, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.fields[i].Value, true
}

// Set stores value under name, replacing any existing value.
func (h *Header) Set(name, value string) {
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.fields[i].Value = value
		return
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Len returns the number of distinct headers.
func (h Header) Len() int {
	return len(h.fields)
}

// Fields returns the headers in first-seen order.
func (h Header) Fields() []HeaderField {
	out := make([]HeaderField, len(h.fields))
	copy(out, h.fields)
	return out
}

// Map returns the headers as a plain map keyed by first-seen spelling.
func (h Header) Map() map[string]string {
	out := make(map[string]string, len(h.fields))
	for _, f := range h.fields {
		out[f.Name] = f.Value
	}
	return out
}

// Response is a decoded HTTP/1.1 response.
type Response struct {
	Status int
	Header Header
	Body   []byte

	// Requested is the interface class the exchange was pinned to.
	Requested netpath.InterfaceClass
	// Used is the interface class observed when the connection became
	// ready. It is never copied from Requested.
	Used netpath.InterfaceClass
}

// Mismatch reports whether the connection ran on a different interface class
// than the one requested.
func (r *Response) Mismatch() bool {
	return r.Used != r.Requested
}

var headerTerminator = []byte("\r\n\r\n")

// DecodeResponse parses a raw response buffer. It never fails: without a
// header terminator the whole buffer is returned as the body with status 0.
// The body is copied byte for byte; chunked and compressed bodies are not
// decoded.
func DecodeResponse(raw []byte) Response {
	end := bytes.Index(raw, headerTerminator)
	if end < 0 {
		return Response{Body: bytes.Clone(raw)}
	}

	var resp Response
	lines := strings.Split(string(raw[:end]), "\r\n")
	resp.Status = parseStatus(lines[0])
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		resp.Header.Set(name, strings.TrimSpace(value))
	}
	resp.Body = bytes.Clone(raw[end+len(headerTerminator):])
	return resp
}

// parseStatus returns the second field of the status line as an integer,
// or 0.
func parseStatus(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	status, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return status
}
