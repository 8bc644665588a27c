// Package locale loads the message templates used to render validation
// errors. Files are JSON or YAML maps; nested maps are flattened into dotted
// keys, so {"error": {"type": "..."}} provides "error.type".
package locale

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/packlint/internal/core/usecase"
)

//go:embed locales/en.json
var defaultFS embed.FS

var ErrUnsupportedFormat = errors.New("unsupported locale format")

// Default returns the embedded English table.
func Default() (usecase.Locale, error) {
	data, err := defaultFS.ReadFile("locales/en.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded locale: %w", err)
	}
	return Parse(data, ".json")
}

// Load reads the table at path, or the embedded default when path is empty.
func Load(path string) (usecase.Locale, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data according to the file extension ext.
func Parse(data []byte, ext string) (usecase.Locale, error) {
	var raw map[string]any
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json locale: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml locale: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	out := make(usecase.Locale)
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, m map[string]any, out usecase.Locale) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case map[any]any:
			nested := make(map[string]any, len(t))
			for nk, nv := range t {
				if ks, ok := nk.(string); ok {
					nested[ks] = nv
				}
			}
			flatten(key, nested, out)
		case string:
			out[key] = t
		case nil:
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}
