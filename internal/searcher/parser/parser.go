// Package parser turns free-text queries into keyword lists.
//
// Syntax: a bare word is a term, and a trailing * makes it a prefix. /re/
// is a regular expression matched against whole tokens, with its literal
// text case-folded and stripped of accents like the tokens. 'a b' or "a b" is a
// sequence whose parts must occur next to each other. A leading + marks a
// keyword required and a leading - marks it prohibited.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

type scanner struct {
	query           string
	pos             int
	treatAsPrefixes bool
}

// Parse parses query. With treatAsPrefixes every plain term becomes a
// prefix. Malformed delimiters and invalid regular expressions are
// reported as *errors.ParseError.
func Parse(query string, treatAsPrefixes bool) ([]Keyword, error) {
	s := &scanner{query: query, treatAsPrefixes: treatAsPrefixes}
	keywords := make([]Keyword, 0, 4)
	for {
		s.skipSpace()
		if s.done() {
			return keywords, nil
		}
		mod := Optional
		switch s.query[s.pos] {
		case '+':
			mod = Required
			s.pos++
		case '-':
			mod = Prohibited
			s.pos++
		}
		if s.done() || s.atSpace() {
			continue
		}
		k, err := s.keyword(mod, true)
		if err != nil {
			return nil, err
		}
		if k != nil {
			keywords = append(keywords, k)
		}
	}
}

func (s *scanner) done() bool {
	return s.pos >= len(s.query)
}

func (s *scanner) atSpace() bool {
	r, _ := utf8.DecodeRuneInString(s.query[s.pos:])
	return unicode.IsSpace(r)
}

func (s *scanner) skipSpace() {
	for !s.done() && s.atSpace() {
		_, size := utf8.DecodeRuneInString(s.query[s.pos:])
		s.pos += size
	}
}

func (s *scanner) fail(pos int, format string, args ...any) error {
	return &apperrors.ParseError{Query: s.query, Position: pos, Reason: fmt.Sprintf(format, args...)}
}

// keyword reads one keyword starting at s.pos. Sequences may only appear at
// the top level; inside a sequence quote characters are ordinary text.
func (s *scanner) keyword(mod Modifier, allowSequence bool) (Keyword, error) {
	start := s.pos
	switch c := s.query[s.pos]; {
	case c == '/':
		pattern, err := s.delimited('/')
		if err != nil {
			return nil, err
		}
		return s.regex(mod, pattern, start)
	case allowSequence && (c == '\'' || c == '"'):
		body, err := s.delimited(c)
		if err != nil {
			return nil, err
		}
		return s.sequence(mod, body, start)
	default:
		return s.word(mod), nil
	}
}

// delimited reads up to the closing delim. A backslash escapes the
// delimiter; other escapes are kept as written.
func (s *scanner) delimited(delim byte) (string, error) {
	open := s.pos
	s.pos++
	var b strings.Builder
	for !s.done() {
		c := s.query[s.pos]
		switch {
		case c == '\\' && s.pos+1 < len(s.query):
			next := s.query[s.pos+1]
			if next != delim {
				b.WriteByte(c)
			}
			b.WriteByte(next)
			s.pos += 2
		case c == delim:
			s.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	if delim == '/' {
		return "", s.fail(open, "unterminated regular expression")
	}
	return "", s.fail(open, "unterminated quoted sequence")
}

func (s *scanner) regex(mod Modifier, pattern string, at int) (Keyword, error) {
	if pattern == "" {
		return nil, s.fail(at, "empty regular expression")
	}
	re, err := regexp.Compile(`^(?i:` + foldPattern(pattern) + `)$`)
	if err != nil {
		return nil, s.fail(at, "invalid regular expression: %v", err)
	}
	return &Regex{Mod: mod, Pattern: pattern, re: re}, nil
}

// foldPattern normalises the literal text of a regular expression the way
// tokens are normalised, so /Pelé/ matches the token "pele". Escapes, with
// the braced argument of \p, \P and \x, and group flags such as (?U) or
// (?P<Name> are copied unchanged.
func foldPattern(pattern string) string {
	var b strings.Builder
	lit := 0
	for i := 0; i < len(pattern); {
		var end int
		switch {
		case pattern[i] == '\\' && i+1 < len(pattern):
			_, size := utf8.DecodeRuneInString(pattern[i+1:])
			end = i + 1 + size
			if c := pattern[i+1]; (c == 'p' || c == 'P' || c == 'x') && strings.HasPrefix(pattern[end:], "{") {
				if n := strings.IndexByte(pattern[end:], '}'); n >= 0 {
					end += n + 1
				}
			}
		case strings.HasPrefix(pattern[i:], "(?"):
			end = len(pattern)
			if n := strings.IndexAny(pattern[i+2:], ":)>"); n >= 0 {
				end = i + 2 + n + 1
			}
		default:
			i++
			continue
		}
		b.WriteString(tokenizer.Normalize(pattern[lit:i]))
		b.WriteString(pattern[i:end])
		i, lit = end, end
	}
	b.WriteString(tokenizer.Normalize(pattern[lit:]))
	return b.String()
}

func (s *scanner) sequence(mod Modifier, body string, at int) (Keyword, error) {
	inner := &scanner{query: body, treatAsPrefixes: s.treatAsPrefixes}
	var parts []Keyword
	for {
		inner.skipSpace()
		if inner.done() {
			break
		}
		k, err := inner.keyword(Optional, false)
		if err != nil {
			var pe *apperrors.ParseError
			if errors.As(err, &pe) {
				pe.Query, pe.Position = s.query, at+1+pe.Position
			}
			return nil, err
		}
		if seq, ok := k.(*Sequence); ok {
			parts = append(parts, seq.Parts...)
		} else if k != nil {
			parts = append(parts, k)
		}
	}
	return group(mod, parts), nil
}

// word reads a bare run up to the next space. Words that tokenize into
// several tokens, like "e-mail", become sequences.
func (s *scanner) word(mod Modifier) Keyword {
	start := s.pos
	for !s.done() && !s.atSpace() {
		_, size := utf8.DecodeRuneInString(s.query[s.pos:])
		s.pos += size
	}
	raw := s.query[start:s.pos]

	prefix := s.treatAsPrefixes
	if strings.HasSuffix(raw, "*") && !strings.HasSuffix(raw, `\*`) {
		raw = strings.TrimSuffix(raw, "*")
		prefix = true
	}

	var parts []Keyword
	for token := range tokenizer.Words(raw) {
		parts = append(parts, &Term{Token: token})
	}
	if prefix && len(parts) > 0 {
		last := parts[len(parts)-1].(*Term)
		parts[len(parts)-1] = &Prefix{Prefix: last.Token}
	}
	if s.treatAsPrefixes {
		for i, p := range parts {
			if t, ok := p.(*Term); ok {
				parts[i] = &Prefix{Prefix: t.Token}
			}
		}
	}
	return group(mod, parts)
}

// group returns nil for no parts, the part itself for one, and a sequence
// otherwise.
func group(mod Modifier, parts []Keyword) Keyword {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return withModifier(parts[0], mod)
	default:
		return &Sequence{Mod: mod, Parts: parts}
	}
}

func withModifier(k Keyword, mod Modifier) Keyword {
	switch k := k.(type) {
	case *Term:
		k.Mod = mod
	case *Prefix:
		k.Mod = mod
	case *Regex:
		k.Mod = mod
	case *Sequence:
		k.Mod = mod
	}
	return k
}
