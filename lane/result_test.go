package lane

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kroma-labs/lanepin/netpath"
)

func TestResult_Preview(t *testing.T) {
	tests := []struct {
		name string
		body string
		n    int
		want string
	}{
		{name: "given short body, then whole body", body: "hi", n: 200, want: "hi"},
		{name: "given long body, then cut at n bytes", body: "abcdef", n: 3, want: "abc"},
		{name: "given newlines, then escaped", body: "a\nb\n", n: 200, want: `a\nb\n`},
		{name: "given cut inside multibyte rune, then replacement char", body: "é", n: 1, want: "�"},
		{name: "given negative n, then whole body", body: "abc", n: -1, want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{Body: []byte(tt.body)}
			assert.Equal(t, tt.want, r.Preview(tt.n))
		})
	}
}

func TestResult_Mismatch(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want bool
	}{
		{
			name: "given pinned lane on requested class, then no mismatch",
			r:    Result{Lane: Pinned, Requested: netpath.Cellular, Used: netpath.Cellular},
			want: false,
		},
		{
			name: "given pinned lane on other class, then mismatch",
			r:    Result{Lane: Pinned, Requested: netpath.Cellular, Used: netpath.WiFi},
			want: true,
		},
		{
			name: "given default lane, then never a mismatch",
			r:    Result{Lane: Default, Requested: netpath.Unknown, Used: netpath.WiFi},
			want: false,
		},
		{
			name: "given failed pinned lane, then no mismatch",
			r:    Result{Lane: Pinned, Requested: netpath.Cellular, Err: errors.New("x")},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Mismatch())
		})
	}
}

func TestComparison_SameStatus(t *testing.T) {
	ok := Comparison{Pinned: Result{Status: 200}, Default: Result{Status: 200}}
	assert.True(t, ok.SameStatus())

	differ := Comparison{Pinned: Result{Status: 200}, Default: Result{Status: 404}}
	assert.False(t, differ.SameStatus())

	failed := Comparison{Pinned: Result{Err: errors.New("x")}, Default: Result{}}
	assert.False(t, failed.SameStatus())
}

func TestPresets(t *testing.T) {
	got := Presets()
	assert.Len(t, got, 5)
	assert.Equal(t, "https://httpbin.org/get", got[0].URL)

	got[0].URL = "changed"
	assert.Equal(t, "https://httpbin.org/get", Presets()[0].URL)
}

func TestResolvePreset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1", want: "https://httpbin.org/get"},
		{in: "5", want: "https://httpstat.us/200"},
		{in: "6", want: "6"},
		{in: "github", want: "https://api.github.com/zen"},
		{in: "CATFACT", want: "https://catfact.ninja/fact"},
		{in: "https://example.com/", want: "https://example.com/"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePreset(tt.in))
		})
	}
}
