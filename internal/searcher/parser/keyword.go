package parser

import (
	"regexp"
	"strings"
)

// Modifier says how a keyword takes part in matching.
type Modifier int

const (
	// Optional keywords add relevance. Without required keywords a
	// document must match at least one of them.
	Optional Modifier = iota
	Required
	Prohibited
)

func (m Modifier) String() string {
	switch m {
	case Required:
		return "required"
	case Prohibited:
		return "prohibited"
	default:
		return "optional"
	}
}

func (m Modifier) sigil() string {
	switch m {
	case Required:
		return "+"
	case Prohibited:
		return "-"
	default:
		return ""
	}
}

// Keyword is one parsed unit of a query: *Term, *Prefix, *Regex or
// *Sequence. String renders the keyword back in query syntax.
type Keyword interface {
	Modifier() Modifier
	String() string
	keyword()
}

// Term matches one normalised token exactly.
type Term struct {
	Mod   Modifier
	Token string
}

func (t *Term) Modifier() Modifier { return t.Mod }
func (t *Term) String() string     { return t.Mod.sigil() + t.Token }
func (*Term) keyword()             {}

// Prefix matches every token starting with Prefix.
type Prefix struct {
	Mod    Modifier
	Prefix string
}

func (p *Prefix) Modifier() Modifier { return p.Mod }
func (p *Prefix) String() string     { return p.Mod.sigil() + p.Prefix + "*" }
func (*Prefix) keyword()             {}

func (p *Prefix) Match(token string) bool {
	return strings.HasPrefix(token, p.Prefix)
}

// Regex matches tokens that the expression matches in full, ignoring case.
type Regex struct {
	Mod     Modifier
	Pattern string
	re      *regexp.Regexp
}

func (r *Regex) Modifier() Modifier { return r.Mod }
func (r *Regex) String() string     { return r.Mod.sigil() + "/" + strings.ReplaceAll(r.Pattern, "/", `\/`) + "/" }
func (*Regex) keyword()             {}

func (r *Regex) Match(token string) bool {
	return r.re.MatchString(token)
}

// Sequence matches when its parts occur at consecutive positions, in order.
// Parts are *Term, *Prefix or *Regex values and are always Optional.
type Sequence struct {
	Mod   Modifier
	Parts []Keyword
}

func (s *Sequence) Modifier() Modifier { return s.Mod }
func (*Sequence) keyword()             {}

func (s *Sequence) String() string {
	parts := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		parts[i] = p.String()
	}
	return s.Mod.sigil() + "'" + strings.Join(parts, " ") + "'"
}

// Canonical renders a keyword list as a single string. Two lists with the
// same canonical form match the same documents.
func Canonical(keywords []Keyword) string {
	parts := make([]string, len(keywords))
	for i, k := range keywords {
		parts[i] = k.String()
	}
	return strings.Join(parts, " ")
}
