package query

import "testing"

func TestParseBareTerms(t *testing.T) {
	p := Parse("hello world")
	if len(p.Terms) != 2 || p.Terms[0] != "hello" || p.Terms[1] != "world" {
		t.Fatalf("unexpected terms: %+v", p.Terms)
	}
}

func TestParseQuotedPhrase(t *testing.T) {
	p := Parse(`"pull request" review`)
	if len(p.Phrases) != 1 || p.Phrases[0] != "pull request" {
		t.Fatalf("expected one phrase, got %+v", p.Phrases)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "review" {
		t.Fatalf("expected one bare term, got %+v", p.Terms)
	}
}

func TestParseExclusion(t *testing.T) {
	p := Parse("error -timeout")
	if len(p.Excluded) != 1 || p.Excluded[0] != "timeout" {
		t.Fatalf("expected one exclusion, got %+v", p.Excluded)
	}
}

func TestParseAppFilter(t *testing.T) {
	p := Parse("app:Slack standup")
	if p.AppName != "Slack" {
		t.Fatalf("expected app filter Slack, got %q", p.AppName)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "standup" {
		t.Fatalf("expected one bare term, got %+v", p.Terms)
	}
}

func TestParseDateFilters(t *testing.T) {
	p := Parse("after:2026-01-01 before:2026-02-01 release notes")
	if p.After == nil || p.After.Format(dateLayout) != "2026-01-01" {
		t.Fatalf("expected after filter, got %v", p.After)
	}
	if p.Before == nil || p.Before.Format(dateLayout) != "2026-02-01" {
		t.Fatalf("expected before filter, got %v", p.Before)
	}
	if len(p.Terms) != 2 {
		t.Fatalf("expected 2 bare terms, got %+v", p.Terms)
	}
}

func TestParseMalformedDateIsDropped(t *testing.T) {
	p := Parse("after:not-a-date hello")
	if p.After != nil {
		t.Fatalf("expected malformed after: to be dropped, got %v", p.After)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "hello" {
		t.Fatalf("expected hello to remain a bare term, got %+v", p.Terms)
	}
}

func TestCompileProducesConjunctiveMatchExpr(t *testing.T) {
	p := Parse(`hello "pull request" -timeout`)
	params := Compile(p, 50)
	want := `hello AND "pull request" NOT timeout`
	if params.MatchExpr != want {
		t.Fatalf("expected %q, got %q", want, params.MatchExpr)
	}
	if params.Limit != 50 {
		t.Fatalf("expected limit 50, got %d", params.Limit)
	}
}

func TestCompilePassesThroughAppAndDateFilters(t *testing.T) {
	p := Parse("app:Chrome after:2026-01-01 design")
	params := Compile(p, 10)
	if params.AppName != "Chrome" {
		t.Fatalf("expected app filter Chrome, got %q", params.AppName)
	}
	if params.After == nil {
		t.Fatalf("expected after filter to pass through")
	}
}

func TestFtsEscapeTermQuotesSpecialCharacters(t *testing.T) {
	p := Parse("C++")
	params := Compile(p, 10)
	if params.MatchExpr != `"C++"` {
		t.Fatalf("expected quoted term for special characters, got %q", params.MatchExpr)
	}
}
