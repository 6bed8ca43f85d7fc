package lane

import (
	"strings"
	"time"

	"github.com/kroma-labs/lanepin/netpath"
	"github.com/kroma-labs/lanepin/pinnedhttp"
)

// Lane names the path a request travelled.
type Lane string

const (
	// Pinned is the lane pinned to one interface class.
	Pinned Lane = "pinned"

	// Default is the lane that lets the operating system pick the route.
	Default Lane = "default"
)

func (l Lane) String() string { return string(l) }

// Result is the outcome of one request on one lane.
type Result struct {
	Lane   Lane   `json:"lane"`
	URL    string `json:"url"`
	Status int    `json:"status"`

	Header pinnedhttp.Header `json:"-"`
	Body   []byte            `json:"-"`

	// Requested is the class the lane was pinned to. The default lane
	// requests nothing and reports netpath.Unknown.
	Requested netpath.InterfaceClass `json:"requested"`

	// Used is the class the connection was observed on.
	Used netpath.InterfaceClass `json:"used"`

	// Duration covers every attempt including backoff waits.
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`

	Err error `json:"-"`
}

// OK reports whether the lane produced a response.
func (r Result) OK() bool { return r.Err == nil }

// Mismatch reports whether a pinned request ran on another class.
func (r Result) Mismatch() bool {
	return r.Lane == Pinned && r.Err == nil && r.Used != r.Requested
}

// Preview returns up to n bytes of the body as text with newlines escaped,
// suitable for a single output line.
func (r Result) Preview(n int) string {
	body := r.Body
	if n >= 0 && len(body) > n {
		body = body[:n]
	}
	s := strings.ToValidUTF8(string(body), "�")
	return strings.ReplaceAll(s, "\n", `\n`)
}

// Comparison pairs the results of the same target on both lanes.
type Comparison struct {
	Pinned  Result `json:"pinned"`
	Default Result `json:"default"`
}

// SameStatus reports whether both lanes answered with the same status.
func (c Comparison) SameStatus() bool {
	return c.Pinned.OK() && c.Default.OK() && c.Pinned.Status == c.Default.Status
}
