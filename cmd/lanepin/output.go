package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kroma-labs/lanepin/lane"
)

// previewBytes is how much of a body the text output shows.
const previewBytes = 200

// resultView adds the fields lane.Result keeps out of JSON.
type resultView struct {
	lane.Result
	Mismatch   bool              `json:"mismatch"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

func newResultView(r lane.Result) resultView {
	v := resultView{
		Result:     r,
		Mismatch:   r.Mismatch(),
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	if r.Header.Len() > 0 {
		v.Headers = r.Header.Map()
	}
	if len(r.Body) > 0 {
		v.Body = r.Preview(-1)
	}
	return v
}

func writeResult(w io.Writer, r lane.Result, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(newResultView(r))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "lane:\t%s\n", r.Lane)
	fmt.Fprintf(tw, "url:\t%s\n", r.URL)
	if r.Lane == lane.Pinned {
		fmt.Fprintf(tw, "requested:\t%s\n", r.Requested)
	}
	fmt.Fprintf(tw, "used:\t%s\n", usedText(r))
	if r.Err != nil {
		fmt.Fprintf(tw, "error:\t%v\n", r.Err)
	} else {
		fmt.Fprintf(tw, "status:\t%d\n", r.Status)
	}
	fmt.Fprintf(tw, "attempts:\t%d\n", r.Attempts)
	fmt.Fprintf(tw, "duration:\t%s\n", r.Duration.Round(time.Millisecond))
	if r.Err == nil {
		fmt.Fprintf(tw, "body:\t%s\n", r.Preview(previewBytes))
	}
	return tw.Flush()
}

func writeComparison(w io.Writer, c lane.Comparison, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(struct {
			Pinned     resultView `json:"pinned"`
			Default    resultView `json:"default"`
			SameStatus bool       `json:"same_status"`
		}{
			Pinned:     newResultView(c.Pinned),
			Default:    newResultView(c.Default),
			SameStatus: c.SameStatus(),
		})
	}

	p, d := c.Pinned, c.Default
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\tpinned\tdefault\n")
	fmt.Fprintf(tw, "url:\t%s\t%s\n", p.URL, d.URL)
	fmt.Fprintf(tw, "requested:\t%s\t%s\n", p.Requested, "-")
	fmt.Fprintf(tw, "used:\t%s\t%s\n", usedText(p), usedText(d))
	fmt.Fprintf(tw, "status:\t%s\t%s\n", statusText(p), statusText(d))
	fmt.Fprintf(tw, "attempts:\t%d\t%d\n", p.Attempts, d.Attempts)
	fmt.Fprintf(tw, "duration:\t%s\t%s\n", p.Duration.Round(time.Millisecond), d.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "body:\t%s\t%s\n", p.Preview(previewBytes/4), d.Preview(previewBytes/4))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range []lane.Result{p, d} {
		if r.Err != nil {
			fmt.Fprintf(w, "%s error: %v\n", r.Lane, r.Err)
		}
	}
	return nil
}

func usedText(r lane.Result) string {
	if r.Mismatch() {
		return r.Used.String() + " (mismatch)"
	}
	return r.Used.String()
}

func statusText(r lane.Result) string {
	if r.Err != nil {
		return "error"
	}
	return fmt.Sprint(r.Status)
}
