// Package tokenizer turns document text into normalised tokens. Tokens are
// case-folded and stripped of combining diacritics, split on every rune that
// is neither a letter nor a digit, and numbered with a position counter that
// runs across all fields of a document in field order.
package tokenizer

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// TokenCount is a token together with its ordered occurrence positions
// within one document.
type TokenCount struct {
	Token    string `json:"token"`
	DocIndex []int  `json:"docIndex"`
}

// Field is one named text value of a document.
type Field struct {
	Name  string
	Value any
}

// Indexable is implemented by objects that expose their own full-text
// fields, in declaration order.
type Indexable interface {
	FullTextFields() []Field
}

// WarningFunc receives fields that could not be tokenised. The field is
// skipped and tokenisation continues with the next one.
type WarningFunc func(err *apperrors.FieldError)

// Normalize folds case and removes combining marks, so "Pelé" and "pele"
// normalise to the same string.
func Normalize(s string) string {
	folded := cases.Fold().String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, folded)
	if err != nil {
		return folded
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Words yields the normalised tokens of text in order.
func Words(text string) iter.Seq[string] {
	return strings.FieldsFuncSeq(Normalize(text), isSeparator)
}

// Tokenize breaks text into positioned tokens starting at position 0.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, 8)
	pos := 0
	for word := range Words(text) {
		tokens = append(tokens, Token{Term: word, Position: pos})
		pos++
	}
	return tokens
}

// Fields yields (token, position) pairs for every field of a document.
// Positions keep increasing from one field to the next, so the last token of
// a field and the first token of the following field are adjacent.
func Fields(objectID string, fields []Field, warn WarningFunc) iter.Seq2[string, int] {
	if warn == nil {
		warn = logWarning
	}
	return func(yield func(string, int) bool) {
		pos := 0
		for _, f := range fields {
			text, err := fieldText(f.Value)
			if err != nil {
				warn(&apperrors.FieldError{ObjectID: objectID, Field: f.Name, Err: err})
				continue
			}
			for word := range Words(text) {
				if !yield(word, pos) {
					return
				}
				pos++
			}
		}
	}
}

// Count groups the tokens of a document by token, sorted by token. Each
// DocIndex is strictly increasing.
func Count(objectID string, fields []Field, warn WarningFunc) []TokenCount {
	byToken := make(map[string][]int)
	for word, pos := range Fields(objectID, fields, warn) {
		byToken[word] = append(byToken[word], pos)
	}
	counts := make([]TokenCount, 0, len(byToken))
	for token, positions := range byToken {
		counts = append(counts, TokenCount{Token: token, DocIndex: positions})
	}
	slices.SortFunc(counts, func(a, b TokenCount) int {
		return strings.Compare(a.Token, b.Token)
	})
	return counts
}

func fieldText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		if !utf8.ValidString(x) {
			return "", fmt.Errorf("invalid UTF-8 text")
		}
		return x, nil
	case []byte:
		if !utf8.Valid(x) {
			return "", fmt.Errorf("invalid UTF-8 text")
		}
		return string(x), nil
	case []string:
		for _, s := range x {
			if !utf8.ValidString(s) {
				return "", fmt.Errorf("invalid UTF-8 text")
			}
		}
		return strings.Join(x, " "), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported field type %T", v)
	}
}

func logWarning(err *apperrors.FieldError) {
	slog.Default().With("component", "tokenizer").Warn("field skipped during tokenization",
		"object_id", err.ObjectID,
		"field", err.Field,
		"error", err.Err,
	)
}
