// Package query parses the small search DSL consumed from outside the
// core (bare terms, quoted phrases, -term exclusions, app:/after:/
// before: filters) into a ParsedQuery, then compiles it into
// catalog.SearchParams. This package depends on catalog, never the
// reverse, so the catalog stays usable without a query surface at all.
// Grounded in waddle's pkg/storage prepareFTSQuery (session_manager.go),
// generalized from a pass-through stub into a real tokenizer since the
// spec requires actual DSL parsing.
package query

import (
	"strings"
	"time"

	"github.com/eequaled/recall/pkg/catalog"
)

// ParsedQuery is the typed result of parsing the DSL: the terms,
// phrases, and exclusions that feed the FTS5 match expression, plus the
// structured filters that become SQL predicates.
type ParsedQuery struct {
	Terms     []string
	Phrases   []string
	Excluded  []string
	AppName   string
	After     *time.Time
	Before    *time.Time
}

const dateLayout = "2006-01-02"

// Parse tokenizes raw into a ParsedQuery. Unknown input characters are
// treated as part of a bare term; a malformed after:/before: date is
// dropped rather than rejected, since a search query is advisory input,
// not a configuration value.
func Parse(raw string) ParsedQuery {
	var p ParsedQuery
	for _, tok := range tokenize(raw) {
		switch {
		case strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2:
			phrase := strings.Trim(tok, `"`)
			if phrase != "" {
				p.Phrases = append(p.Phrases, phrase)
			}
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			p.Excluded = append(p.Excluded, tok[1:])
		case strings.HasPrefix(tok, "app:"):
			p.AppName = tok[len("app:"):]
		case strings.HasPrefix(tok, "after:"):
			if t, err := time.Parse(dateLayout, tok[len("after:"):]); err == nil {
				p.After = &t
			}
		case strings.HasPrefix(tok, "before:"):
			if t, err := time.Parse(dateLayout, tok[len("before:"):]); err == nil {
				p.Before = &t
			}
		default:
			p.Terms = append(p.Terms, tok)
		}
	}
	return p
}

// tokenize splits raw on space characters, keeping quoted phrases (which may
// contain spaces) as single tokens.
func tokenize(raw string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			cur.WriteRune(r)
			inQuotes = !inQuotes
			if !inQuotes {
				flush()
			}
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Compile turns a ParsedQuery into catalog.SearchParams: bare terms and
// phrases become a conjunctive FTS5 match expression, exclusions are
// appended as FTS5's binary NOT operator, and the structured filters pass
// through unchanged.
func Compile(p ParsedQuery, limit int) catalog.SearchParams {
	var clauses []string
	for _, t := range p.Terms {
		clauses = append(clauses, ftsEscapeTerm(t))
	}
	for _, ph := range p.Phrases {
		clauses = append(clauses, `"`+strings.ReplaceAll(ph, `"`, `""`)+`"`)
	}
	expr := strings.Join(clauses, " AND ")
	for _, ex := range p.Excluded {
		if expr != "" {
			expr += " "
		}
		expr += "NOT " + ftsEscapeTerm(ex)
	}

	return catalog.SearchParams{
		MatchExpr: expr,
		AppName:   p.AppName,
		After:     p.After,
		Before:    p.Before,
		Limit:     limit,
	}
}

// ftsEscapeTerm quotes a bare term if it contains characters FTS5 treats
// specially, so a term like "C++" or "a-b" is matched literally rather
// than parsed as FTS5 syntax.
func ftsEscapeTerm(term string) string {
	for _, r := range term {
		if !isPlainTermRune(r) {
			return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
		}
	}
	return term
}

func isPlainTermRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
