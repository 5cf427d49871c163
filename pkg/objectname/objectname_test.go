package objectname_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attr-sampler/pkg/objectname"
)

func TestParseCanonical(t *testing.T) {
	a, err := objectname.Parse("app:type=Cache,name=users")
	require.NoError(t, err)
	b, err := objectname.Parse("app:name=users,type=Cache")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "app:name=users,type=Cache", a.Canonical())
	assert.Equal(t, "app", a.Domain())
	assert.Equal(t, "Cache", a.KeyProperty("type"))
	assert.Equal(t, "", a.KeyProperty("missing"))
	assert.Equal(t, map[string]string{"type": "Cache", "name": "users"}, a.KeyProperties())
	assert.False(t, a.IsPattern())
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"no-separator",
		"app:",
		"app:type",
		"app:=x",
		"app:type=",
		"app:type=a,type=b",
		"app:*,*",
		"app:ty*pe=a",
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			_, err := objectname.Parse(in)
			require.Error(t, err)
			var se *objectname.SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, in, se.Input)
		})
	}
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		pattern string
		target  string
		want    bool
	}{
		{"*:*", "app:type=Cache", true},
		{"app:*", "app:type=Cache,name=users", true},
		{"app:*", "other:type=Cache", false},
		{"ap?:*", "app:type=Cache", true},
		{"a*:type=Cache", "abc:type=Cache", true},
		{"app:type=Cache", "app:type=Cache", true},
		{"app:type=Cache", "app:type=Cache,name=users", false},
		{"app:type=Cache,*", "app:type=Cache,name=users", true},
		{"app:type=Internal,*", "app:type=Internal,name=x", true},
		{"app:type=Internal,*", "app:type=Cache", false},
		{"app:type=C*", "app:type=Cache", true},
		{"app:type=C?che", "app:type=Cache", true},
		{"app:type=C?che", "app:type=Caache", false},
		{"app:name=*,*", "app:type=Cache", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.target, func(t *testing.T) {
			p := objectname.MustParse(tt.pattern)
			n := objectname.MustParse(tt.target)
			assert.Equal(t, tt.want, p.Apply(n))
		})
	}
}

func TestApplyRejectsPatternTarget(t *testing.T) {
	p := objectname.MustParse("*:*")
	assert.True(t, p.IsPattern())
	assert.True(t, p.IsPropertyListPattern())
	assert.False(t, p.Apply(p))
	assert.False(t, p.Apply(objectname.Name{}))
	assert.Equal(t, "*:*", p.Canonical())
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { objectname.MustParse("broken") })
}
