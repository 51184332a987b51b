package placeholder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/proptest/internal/source"
)

func newResolver(t *testing.T, values map[string]string, opts ...Option) *Resolver {
	t.Helper()
	src, err := source.Load(source.NewStatic("test", values))
	require.NoError(t, err)
	return New(src, opts...)
}

func TestResolvePlaceholders(t *testing.T) {
	r := newResolver(t, map[string]string{
		"db.maria.host":   "localhost",
		"db.maria.dbName": "test",
		"db.maria.url":    "jdbc:mariadb://${db.maria.host}:3306/${db.maria.dbName}",
		"env":             "maria",
		"nested":          "${db.${env}.dbName}",
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text is unchanged", input: "Hello Program", want: "Hello Program"},
		{name: "single key", input: "${db.maria.host}", want: "localhost"},
		{name: "recursive value", input: "${db.maria.url}", want: "jdbc:mariadb://localhost:3306/test"},
		{name: "embedded", input: "url=${db.maria.host}!", want: "url=localhost!"},
		{name: "default used", input: "${app.defaultValue:Hello Program}", want: "Hello Program"},
		{name: "default ignored", input: "${db.maria.host:other}", want: "localhost"},
		{name: "default with colon", input: "${missing:jdbc:mariadb://x}", want: "jdbc:mariadb://x"},
		{name: "empty default", input: "${missing:}", want: ""},
		{name: "nested default", input: "${missing:${db.maria.dbName}}", want: "test"},
		{name: "nested key", input: "${nested}", want: "test"},
		{name: "unterminated is literal", input: "${db.maria.host", want: "${db.maria.host"},
		{name: "braces without dollar", input: "{A:80,B:90}", want: "{A:80,B:90}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newResolver(t, map[string]string{"a": "x${b}", "b": "y"})

	once, err := r.Resolve("${a}")
	require.NoError(t, err)
	twice, err := r.Resolve(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestResolveUnresolved(t *testing.T) {
	r := newResolver(t, map[string]string{"a": "${missing}"})

	_, err := r.Resolve("${a}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)

	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "missing", unresolved.Key)
}

func TestResolveCircularReference(t *testing.T) {
	t.Run("two keys", func(t *testing.T) {
		r := newResolver(t, map[string]string{"a": "${b}", "b": "${a}"})

		_, err := r.Resolve("${a}")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircularReference)

		var circular *CircularReferenceError
		require.True(t, errors.As(err, &circular))
		assert.Equal(t, []string{"a", "b", "a"}, circular.Chain)
	})

	t.Run("self", func(t *testing.T) {
		r := newResolver(t, map[string]string{"a": "x${a}"})
		_, _, err := r.Lookup("a")
		assert.ErrorIs(t, err, ErrCircularReference)
	})

	t.Run("through default", func(t *testing.T) {
		r := newResolver(t, map[string]string{"a": "${missing:${a}}"})
		_, _, err := r.Lookup("a")
		assert.ErrorIs(t, err, ErrCircularReference)
	})

	t.Run("depth bound", func(t *testing.T) {
		values := make(map[string]string)
		for i := 0; i < 10; i++ {
			values[fmt.Sprintf("k%d", i)] = fmt.Sprintf("${k%d}", i+1)
		}
		values["k10"] = "end"

		r := newResolver(t, values, WithMaxDepth(5))
		_, err := r.Resolve("${k0}")
		assert.ErrorIs(t, err, ErrCircularReference)

		deep := newResolver(t, values)
		got, err := deep.Resolve("${k0}")
		require.NoError(t, err)
		assert.Equal(t, "end", got)
	})
}

func TestResolveReusesResolvedKeys(t *testing.T) {
	const levels = 25
	values := make(map[string]string)
	for i := 0; i < levels; i++ {
		values[fmt.Sprintf("k%d", i)] = fmt.Sprintf("#{'${k%d}' ?: '${k%d}'}", i+1, i+1)
	}
	values[fmt.Sprintf("k%d", levels)] = "#{systemProperties['leaf']}"

	calls := 0
	r := newResolver(t, values, WithSystemProperties(func(name string) (string, bool) {
		calls++
		return "leaf-value", name == "leaf"
	}))

	got, err := r.Resolve("${k0}")
	require.NoError(t, err)
	assert.Equal(t, "leaf-value", got)
	assert.Equal(t, 1, calls, "each key must be resolved once per call")

	calls = 0
	got, found, err := r.Lookup("k0")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "leaf-value", got)
	assert.Equal(t, 1, calls)
}

func TestResolveCachedKeyStillHonoursDepthBound(t *testing.T) {
	r := newResolver(t, map[string]string{
		"b":  "${c}",
		"c":  "v",
		"x1": "${x2}",
		"x2": "${x3}",
		"x3": "${b}",
	}, WithMaxDepth(3))

	got, err := r.Resolve("${b}")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = r.Resolve("${b}${x1}")
	assert.ErrorIs(t, err, ErrCircularReference)
}

func TestLookup(t *testing.T) {
	r := newResolver(t, map[string]string{"a": "${b}", "b": "value"})

	got, found, err := r.Lookup("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", got)

	_, found, err = r.Lookup("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveExpressions(t *testing.T) {
	system := map[string]string{"java.version": "21.0.2"}
	env := map[string]string{"HOME": "/home/kido"}
	r := newResolver(t, map[string]string{
		"app.friends": "tom,jane, bob",
		"app.cutline": "{A:80,B:90}",
	},
		WithSystemProperties(func(name string) (string, bool) {
			v, ok := system[name]
			return v, ok
		}),
		WithEnvironment(func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}),
	)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "system property", input: "#{systemProperties['java.version']}", want: "21.0.2"},
		{name: "elvis fallback", input: "#{systemProperties['java.version.my'] ?: '11.0'}", want: "11.0"},
		{name: "elvis keeps present", input: "#{systemProperties['java.version'] ?: '11.0'}", want: "21.0.2"},
		{name: "elvis chain", input: "#{systemProperties['x'] ?: systemEnvironment['HOME']}", want: "/home/kido"},
		{name: "environment", input: "#{systemEnvironment['HOME']}", want: "/home/kido"},
		{name: "split", input: "#{'${app.friends}'.split(',')}", want: "tom,jane,bob"},
		{name: "split other separator", input: "#{'a;b ; c'.split(';')}", want: "a,b,c"},
		{name: "map literal", input: "#{${app.cutline}}", want: "{A:80,B:90}"},
		{name: "string literal with escaped quote", input: "#{'it''s'}", want: "it's"},
		{name: "number", input: "#{42}", want: "42"},
		{name: "null elvis", input: "#{null ?: 'fallback'}", want: "fallback"},
		{name: "mixed text", input: "v#{'1'}.${app.cutline}", want: "v1.{A:80,B:90}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveExpressionErrors(t *testing.T) {
	r := newResolver(t, nil)

	t.Run("missing system property", func(t *testing.T) {
		_, err := r.Resolve("#{systemProperties['java.version.my']}")
		assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)

		var unresolved *UnresolvedError
		require.True(t, errors.As(err, &unresolved))
		assert.Equal(t, "systemProperties['java.version.my']", unresolved.Key)
	})

	for _, expr := range []string{
		"#{T(java.lang.Math).random()}",
		"#{'abc'.toUpperCase()}",
		"#{'a' ?: }",
		"#{'a'.split('')}",
		"#{systemProperties[name]}",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := r.Resolve(expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnresolvedPlaceholder)
		})
	}
}
