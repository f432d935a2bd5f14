package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// resolve returns a [kong.ConfigurationLoader] that reads YAML configuration
// files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve("config"), "/path/to/config.yaml")
//
// The document is converted as follows:
//   - When the root mapping has a key equal to section holding a mapping,
//     only that mapping is used; otherwise the root mapping is used
//   - Nested mappings are flattened by joining keys with "-", so that
//     "log: {level: debug}" configures --log-level
//   - Keys may use "_" in place of "-"
//   - Numbers are passed to Kong as strings
//   - Sequences configure repeatable flags such as --var
//
// Example config file:
//
//	policy: ~/.config/safeval/policy.yaml
//	max-depth: 50
//	log:
//	  level: debug
//	  format: json
//	var:
//	  - rate=0.07
//
// Command-line flags override config file values.
func resolve(section string) kong.ConfigurationLoader {
	return func(r io.Reader) (kong.Resolver, error) {
		var doc map[string]any

		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return config{}, nil
			}

			return nil, err
		}

		if sub, ok := doc[section].(map[string]any); ok {
			doc = sub
		}

		cfg := make(config)
		cfg.flatten("", doc)

		return cfg, nil
	}
}

// config implements [kong.Resolver] for flattened YAML documents.
type config map[string]any

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if value, ok := r[flag.Name]; ok {
		return value, nil
	}

	if value, ok := r[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return value, nil
	}

	// Not found: Kong uses the default.
	return nil, nil
}

func (r config) flatten(prefix string, m map[string]any) {
	for key, value := range m {
		if prefix != "" {
			key = prefix + "-" + key
		}

		if sub, ok := value.(map[string]any); ok {
			r.flatten(key, sub)

			continue
		}

		r[key] = configValue(value)
	}
}

// configValue converts a decoded YAML value into a form Kong can map. Kong
// requires numbers as strings for parsing.
func configValue(value any) any {
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = configValue(e)
		}

		return out
	case nil, string, bool:
		return v
	}

	return fmt.Sprint(value)
}
