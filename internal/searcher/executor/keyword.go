package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/resilience"
)

// docMatch is what one keyword matched in one document.
type docMatch struct {
	occurrences int
	tokens      map[string]struct{}
}

// docMatches maps document keys to their match.
type docMatches map[string]*docMatch

func (m docMatches) add(docKey, token string, occurrences int) {
	dm, ok := m[docKey]
	if !ok {
		dm = &docMatch{tokens: make(map[string]struct{}, 1)}
		m[docKey] = dm
	}
	dm.occurrences += occurrences
	dm.tokens[token] = struct{}{}
}

func (e *Executor) resolve(ctx context.Context, r index.Reader, kw parser.Keyword) (docMatches, error) {
	if seq, ok := kw.(*parser.Sequence); ok {
		return e.resolveSequence(ctx, r, seq)
	}
	tokens, err := e.expand(ctx, r, kw)
	if err != nil {
		return nil, err
	}
	out := make(docMatches)
	for _, token := range tokens {
		postings, err := r.Postings(ctx, token)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			out.add(p.DocKey, token, p.Frequency())
		}
	}
	return out, nil
}

// expand lists the indexed tokens a single-token keyword stands for.
func (e *Executor) expand(ctx context.Context, r index.Reader, kw parser.Keyword) ([]string, error) {
	switch k := kw.(type) {
	case *parser.Term:
		return []string{k.Token}, nil
	case *parser.Prefix:
		var tokens []string
		err := r.PostingsByPrefix(ctx, k.Prefix, func(token string, _ int) error {
			tokens = append(tokens, token)
			return nil
		})
		return tokens, err
	case *parser.Regex:
		return e.scanRegex(ctx, r, k)
	default:
		return nil, fmt.Errorf("unexpected keyword type %T", kw)
	}
}

// scanRegex is the only unbounded walk over the dictionary, so it runs under
// the configured timeout as well as the caller's context.
func (e *Executor) scanRegex(ctx context.Context, r index.Reader, re *parser.Regex) ([]string, error) {
	var tokens []string
	err := resilience.WithTimeout(ctx, e.regexTimeout, "regex scan", func(ctx context.Context) error {
		return r.AllTokens(ctx, func(token string, _ int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if re.Match(token) {
				tokens = append(tokens, token)
			}
			return nil
		})
	})
	if errors.Is(err, apperrors.ErrTimeout) {
		e.logger.Warn("regex scan timed out", "pattern", re.Pattern, "timeout", e.regexTimeout, "matched", len(tokens))
		e.metrics.RegexTimeout()
		return nil, fmt.Errorf("regular expression /%s/: %w", re.Pattern, err)
	}
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// positions maps a document key to position -> token for one sequence part.
type positions map[string]map[int]string

// resolveSequence counts the starting positions at which every part occurs
// at consecutive positions. A start that fails only rules out that start.
func (e *Executor) resolveSequence(ctx context.Context, r index.Reader, seq *parser.Sequence) (docMatches, error) {
	out := make(docMatches)
	if len(seq.Parts) == 0 {
		return out, nil
	}

	parts := make([]positions, len(seq.Parts))
	for i, part := range seq.Parts {
		tokens, err := e.expand(ctx, r, part)
		if err != nil {
			return nil, err
		}
		pos := make(positions)
		for _, token := range tokens {
			postings, err := r.Postings(ctx, token)
			if err != nil {
				return nil, err
			}
			for _, p := range postings {
				m, ok := pos[p.DocKey]
				if !ok {
					m = make(map[int]string, len(p.Positions))
					pos[p.DocKey] = m
				}
				for _, at := range p.Positions {
					m[at] = token
				}
			}
		}
		if len(pos) == 0 {
			return out, nil
		}
		parts[i] = pos
	}

	for docKey, first := range parts[0] {
		for start, token := range first {
			matched := []string{token}
			for i := 1; i < len(parts); i++ {
				t, ok := parts[i][docKey][start+i]
				if !ok {
					matched = nil
					break
				}
				matched = append(matched, t)
			}
			for _, t := range matched {
				out.add(docKey, t, 1)
			}
		}
	}
	return out, nil
}
