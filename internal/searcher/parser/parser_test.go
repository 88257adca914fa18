package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

func TestParse_Canonical(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"empty", "   ", ""},
		{"terms are normalised", "Hello Clown KILROY", "hello clown kilroy"},
		{"modifiers", "A B +C -D", "a b +c -d"},
		{"prefix", "data*", "data*"},
		{"escaped star is literal", `data\*`, "data"},
		{"regex", "/ab+c/", "/ab+c/"},
		{"regex escaped slash", `/a\/b/`, `/a\/b/`},
		{"single quoted sequence", "'word document'", "'word document'"},
		{"double quoted sequence", `-"word document"`, "-'word document'"},
		{"sequence with prefix and regex", "+'big dat* /x+/'", "+'big dat* /x+/'"},
		{"one-word sequence collapses", "'word'", "word"},
		{"hyphenated word is a sequence", "e-mail", "'e mail'"},
		{"accents fold", "Pelé", "pele"},
		{"punctuation only is dropped", "+ -- ... word", "word"},
		{"lone modifiers", "+ -", ""},
		{"quote inside sequence is text", `'it"s here'`, "'it s here'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keywords, err := Parse(tt.query, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Canonical(keywords))
		})
	}
}

func TestParse_Types(t *testing.T) {
	keywords, err := Parse(`+alpha -bet* /g.*a/ 'd e'`, false)
	require.NoError(t, err)
	require.Len(t, keywords, 4)

	term, ok := keywords[0].(*Term)
	require.True(t, ok)
	assert.Equal(t, Required, term.Modifier())
	assert.Equal(t, "alpha", term.Token)

	prefix, ok := keywords[1].(*Prefix)
	require.True(t, ok)
	assert.Equal(t, Prohibited, prefix.Modifier())
	assert.True(t, prefix.Match("beta"))
	assert.False(t, prefix.Match("alpha"))

	re, ok := keywords[2].(*Regex)
	require.True(t, ok)
	assert.Equal(t, Optional, re.Modifier())
	assert.True(t, re.Match("gamma"))
	assert.True(t, re.Match("GAMMA"))
	assert.False(t, re.Match("gammas"), "regex must match the whole token")

	seq, ok := keywords[3].(*Sequence)
	require.True(t, ok)
	require.Len(t, seq.Parts, 2)
	for _, p := range seq.Parts {
		assert.Equal(t, Optional, p.Modifier())
	}
}

func TestParse_RegexLiteralsAreNormalised(t *testing.T) {
	tests := []struct {
		pattern string
		token   string
		match   bool
	}{
		{"pelé", "pele", true},
		{"PELÉ.*", "peleton", true},
		{"[ÉX]tra", "etra", true},
		{`caf\x{e9}`, "cafe", false},
		{`\p{Greek}+`, "αβγ", true},
		{`\PL+`, "123", true},
		{"(?P<Name>caf)é", "cafe", true},
		{"(?U)ñ+", "n", true},
		{"STRASSE", "strasse", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			keywords, err := Parse("/"+tt.pattern+"/", false)
			require.NoError(t, err)
			re := keywords[0].(*Regex)
			assert.Equal(t, tt.match, re.Match(tt.token))
			assert.Equal(t, tt.pattern, re.Pattern, "the pattern is kept as written")
		})
	}
}

func TestParse_TreatAsPrefixes(t *testing.T) {
	keywords, err := Parse("+hel wor* 'big data' /x/", true)
	require.NoError(t, err)
	assert.Equal(t, "+hel* wor* 'big* data*' /x/", Canonical(keywords))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		position int
	}{
		{"unterminated regex", "hello /abc", 6},
		{"unterminated single quote", "a 'b c", 2},
		{"unterminated double quote", `"abc`, 0},
		{"empty regex", "//", 0},
		{"invalid regex", "x /a(b/", 2},
		{"invalid regex inside sequence", "'a /[/'", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrParse))

			var pe *apperrors.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.query, pe.Query)
			assert.Equal(t, tt.position, pe.Position)
		})
	}
}

func TestModifierString(t *testing.T) {
	assert.Equal(t, "optional", Optional.String())
	assert.Equal(t, "required", Required.String())
	assert.Equal(t, "prohibited", Prohibited.String())
}
