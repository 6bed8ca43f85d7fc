package lane

import (
	"strconv"
	"strings"
)

// Preset is a public endpoint that answers without credentials.
type Preset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var presets = []Preset{
	{Name: "httpbin /get", URL: "https://httpbin.org/get"},
	{Name: "JSONPlaceholder /todos/1", URL: "https://jsonplaceholder.typicode.com/todos/1"},
	{Name: "GitHub Zen", URL: "https://api.github.com/zen"},
	{Name: "catfact.ninja", URL: "https://catfact.ninja/fact"},
	{Name: "httpstat.us 200", URL: "https://httpstat.us/200"},
}

// Presets returns the built-in test targets.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// ResolvePreset maps a preset index ("1".."5") or a case-insensitive name
// prefix to its URL. Any other input is returned unchanged.
func ResolvePreset(s string) string {
	if idx, err := strconv.Atoi(s); err == nil {
		if idx >= 1 && idx <= len(presets) {
			return presets[idx-1].URL
		}
		return s
	}
	lower := strings.ToLower(s)
	for _, p := range presets {
		if lower != "" && strings.HasPrefix(strings.ToLower(p.Name), lower) {
			return p.URL
		}
	}
	return s
}
