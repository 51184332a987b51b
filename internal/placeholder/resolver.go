package placeholder

import (
	"os"
	"strings"

	"github.com/eugenenazirov/proptest/internal/source"
)

// DefaultMaxDepth bounds the length of a placeholder chain.
const DefaultMaxDepth = 32

// LookupFunc returns a named value and whether it exists.
type LookupFunc func(name string) (string, bool)

// Resolver expands placeholders against a Source.
type Resolver struct {
	src      *source.Source
	system   LookupFunc
	env      LookupFunc
	maxDepth int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSystemProperties sets the lookup behind systemProperties['name'].
func WithSystemProperties(lookup LookupFunc) Option {
	return func(r *Resolver) {
		if lookup != nil {
			r.system = lookup
		}
	}
}

// WithEnvironment sets the lookup behind systemEnvironment['NAME'].
func WithEnvironment(lookup LookupFunc) Option {
	return func(r *Resolver) {
		if lookup != nil {
			r.env = lookup
		}
	}
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// New creates a Resolver for src.
func New(src *source.Source, opts ...Option) *Resolver {
	r := &Resolver{
		src:      src,
		system:   func(string) (string, bool) { return "", false },
		env:      os.LookupEnv,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the fully resolved value of key. found is false when no
// provider defines key; err is set when the stored value cannot be resolved.
func (r *Resolver) Lookup(key string) (value string, found bool, err error) {
	raw, ok := r.src.Lookup(key)
	if !ok {
		return "", false, nil
	}
	value, _, err = r.resolve(raw, []string{key}, memo{})
	return value, true, err
}

// Resolve expands every placeholder in value. A value without placeholders
// is returned unchanged.
func (r *Resolver) Resolve(value string) (string, error) {
	out, _, err := r.resolve(value, nil, memo{})
	return out, err
}

// memo caches keys already resolved during one Lookup or Resolve call.
// height is the number of nested key hops the value needed, so a cached
// entry is only reused where the depth bound would still hold.
type memo map[string]memoEntry

type memoEntry struct {
	value  string
	height int
}

// resolve returns the expanded value and the deepest key hop it took.
func (r *Resolver) resolve(value string, chain []string, m memo) (string, int, error) {
	if len(chain) > r.maxDepth {
		return "", 0, &CircularReferenceError{Chain: append([]string(nil), chain...)}
	}
	if !strings.Contains(value, "{") {
		return value, 0, nil
	}

	var b strings.Builder
	height := 0
	i := 0
	for i < len(value) {
		start := nextOpening(value, i)
		if start < 0 {
			b.WriteString(value[i:])
			break
		}
		isExpr := value[start] == '#'
		end := matchingBrace(value, start+2, isExpr)
		if end < 0 {
			// unterminated references are kept literally
			b.WriteString(value[i:])
			break
		}

		b.WriteString(value[i:start])
		body := value[start+2 : end]

		var (
			out string
			h   int
			err error
		)
		if isExpr {
			out, h, err = r.expression(body, chain, m)
		} else {
			out, h, err = r.placeholder(body, value, chain, m)
		}
		if err != nil {
			return "", 0, err
		}
		b.WriteString(out)
		height = max(height, h)
		i = end + 1
	}
	return b.String(), height, nil
}

func (r *Resolver) placeholder(body, value string, chain []string, m memo) (string, int, error) {
	keyPart, def, hasDefault := splitDefault(body)

	key, height, err := r.resolve(keyPart, chain, m)
	if err != nil {
		return "", 0, err
	}
	key = strings.TrimSpace(key)

	for _, seen := range chain {
		if source.Canonical(seen) == source.Canonical(key) {
			return "", 0, &CircularReferenceError{Chain: extend(chain, key)}
		}
	}

	if e, ok := m[key]; ok && len(chain)+e.height <= r.maxDepth {
		return e.value, max(height, e.height), nil
	}
	if raw, ok := r.src.Lookup(key); ok {
		out, h, err := r.resolve(raw, extend(chain, key), m)
		if err != nil {
			return "", 0, err
		}
		m[key] = memoEntry{value: out, height: h + 1}
		return out, max(height, h+1), nil
	}
	if hasDefault {
		out, h, err := r.resolve(def, chain, m)
		if err != nil {
			return "", 0, err
		}
		return out, max(height, h), nil
	}
	return "", 0, &UnresolvedError{Key: key, Value: value}
}

func (r *Resolver) expression(body string, chain []string, m memo) (string, int, error) {
	expanded, height, err := r.resolve(body, chain, m)
	if err != nil {
		return "", 0, err
	}

	ev := &evaluator{r: r, expr: expanded}
	res, err := ev.evaluate()
	if err != nil {
		return "", 0, err
	}
	if !res.present {
		return "", 0, &UnresolvedError{Key: res.ref, Value: "#{" + body + "}"}
	}
	return res.String(), height, nil
}

func extend(chain []string, key string) []string {
	out := make([]string, len(chain), len(chain)+1)
	copy(out, chain)
	return append(out, key)
}

// nextOpening returns the index of the next "${" or "#{" at or after from.
func nextOpening(s string, from int) int {
	for j := from; j+1 < len(s); j++ {
		if (s[j] == '$' || s[j] == '#') && s[j+1] == '{' {
			return j
		}
	}
	return -1
}

// matchingBrace returns the index of the '}' closing a reference whose body
// starts at from. Quoted text is skipped inside expressions.
func matchingBrace(s string, from int, quoted bool) int {
	depth := 1
	var quote byte
	for j := from; j < len(s); j++ {
		c := s[j]
		if quoted {
			if quote != 0 {
				if c == quote {
					quote = 0
				}
				continue
			}
			if c == '\'' || c == '"' {
				quote = c
				continue
			}
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// splitDefault splits "key:default" at the first top-level colon.
func splitDefault(body string) (key, def string, ok bool) {
	depth := 0
	for j := 0; j < len(body); j++ {
		switch body[j] {
		case '{':
			depth++
		case '}':
			depth--
		case ':':
			if depth == 0 {
				return body[:j], body[j+1:], true
			}
		}
	}
	return body, "", false
}

// Source returns the source the resolver reads from.
func (r *Resolver) Source() *source.Source {
	return r.src
}
