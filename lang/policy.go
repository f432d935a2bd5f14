package lang

import (
	"cmp"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Default policy settings.
const (
	DefaultSigil        = "$"
	DefaultSigilPattern = `\$\{([^{}]+)\}`
	DefaultSelfName     = "__df"
)

// DefaultAllowed lists the primitive callables available to every expression.
var DefaultAllowed = []string{
	"range", "map", "filter", "list", "bool", "int", "float", "complex", "str",
}

// DefaultNamespacePrefixes lists the namespace prefixes whose members are
// callable by default.
var DefaultNamespacePrefixes = []string{"np", "numpy", "pd", "pandas"}

// Policy is the immutable allow-list/deny-list consulted before any callable
// is resolved.
type Policy struct {
	sigilPattern *regexp.Regexp
	allowed      map[string]struct{}
	forbidden    map[string]struct{}
	prefixes     []string
	sigil        byte
	selfName     string
}

// PolicyConfig is the serialized form of a [Policy].
// Nil slices and empty strings select the defaults.
type PolicyConfig struct {
	Allowed           []string `yaml:"allowed,omitempty"`
	NamespacePrefixes []string `yaml:"namespaces,omitempty"`
	Forbidden         []string `yaml:"forbidden,omitempty"`
	Sigil             string   `yaml:"sigil,omitempty"`
	SigilPattern      string   `yaml:"pattern,omitempty"`
	SelfName          string   `yaml:"self,omitempty"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() *Policy {
	p, _ := PolicyConfig{}.Policy()

	return p
}

// Policy validates c and builds the immutable policy it describes.
func (c PolicyConfig) Policy() (*Policy, error) {
	allowed := c.Allowed
	if allowed == nil {
		allowed = DefaultAllowed
	}

	prefixes := c.NamespacePrefixes
	if prefixes == nil {
		prefixes = DefaultNamespacePrefixes
	}

	sigil := cmp.Or(c.Sigil, DefaultSigil)
	if len(sigil) != 1 {
		return nil, ErrInvalidPolicy.With(
			slog.String("sigil", sigil),
			slog.String("reason", "sigil must be a single byte"),
		)
	}

	pattern := cmp.Or(c.SigilPattern, DefaultSigilPattern)

	rex, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, ErrInvalidPolicy.Wrap(err).With(slog.String("pattern", pattern))
	}

	if rex.NumSubexp() < 1 {
		return nil, ErrInvalidPolicy.With(
			slog.String("pattern", pattern),
			slog.String("reason", "pattern must capture the column name"),
		)
	}

	p := &Policy{
		sigilPattern: rex,
		allowed:      make(map[string]struct{}, len(allowed)),
		forbidden:    make(map[string]struct{}, len(c.Forbidden)),
		prefixes:     slices.Clone(prefixes),
		sigil:        sigil[0],
		selfName:     cmp.Or(c.SelfName, DefaultSelfName),
	}

	for _, name := range allowed {
		p.allowed[name] = struct{}{}
	}

	for _, name := range c.Forbidden {
		p.forbidden[name] = struct{}{}
	}

	return p, nil
}

// ReadPolicy decodes a YAML policy document.
func ReadPolicy(r io.Reader) (*Policy, error) {
	var c PolicyConfig

	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return nil, ErrInvalidPolicy.Wrap(err)
	}

	return c.Policy()
}

// Config returns the serialized form of p.
func (p *Policy) Config() PolicyConfig {
	return PolicyConfig{
		Allowed:           sortedKeys(p.allowed),
		NamespacePrefixes: slices.Clone(p.prefixes),
		Forbidden:         sortedKeys(p.forbidden),
		Sigil:             string(p.sigil),
		SigilPattern:      strings.TrimSuffix(strings.TrimPrefix(p.sigilPattern.String(), `^(?:`), `)`),
		SelfName:          p.selfName,
	}
}

// IsAvailable reports whether name may be resolved as a callable.
func (p *Policy) IsAvailable(name string) bool {
	if _, ok := p.forbidden[name]; ok {
		return false
	}

	if _, ok := p.allowed[name]; ok {
		return true
	}

	return p.hasNamespacePrefix(name)
}

func (p *Policy) hasNamespacePrefix(name string) bool {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// Allowed returns the sorted names of the allowed primitives.
func (p *Policy) Allowed() []string { return sortedKeys(p.allowed) }

// NamespacePrefixes returns the configured namespace prefixes.
func (p *Policy) NamespacePrefixes() []string { return slices.Clone(p.prefixes) }

// Sigil returns the byte that introduces a column reference.
func (p *Policy) Sigil() byte { return p.sigil }

// SelfName returns the reserved column name that refers to the whole table.
func (p *Policy) SelfName() string { return p.selfName }

// matchColumn matches a column reference at the start of s and returns the
// referenced name and the length of the match.
func (p *Policy) matchColumn(s string) (name string, n int, ok bool) {
	m := p.sigilPattern.FindStringSubmatchIndex(s)
	if m == nil || m[2] < 0 {
		return "", 0, false
	}

	return s[m[2]:m[3]], m[1], true
}
