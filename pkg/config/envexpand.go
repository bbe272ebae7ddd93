package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// templates. Uses {{.VAR_NAME}} syntax instead of $ so that literal
// dollar signs in config values — API keys, URL-encoded fragments,
// fallback phrases containing prices — pass through untouched.
//
// Examples:
//   - {{.STATUS_API_KEY}} → value of STATUS_API_KEY
//   - {{.LLM_BASE_URL}}/v1 → expanded base URL with suffix
//
// Missing variables expand to empty string; validation catches required
// fields left empty. Malformed templates pass the original bytes
// through so the YAML parser can produce a clearer error.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
