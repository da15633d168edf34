package textextract

import (
	"regexp"
	"strings"
)

// fullURLPattern matches a complete http(s) URL, extending waddle's
// pkg/synthesis/extractor.go urlRegex (which only matched http(s)://...)
// with a bare-domain alternative below for URLs that omit the scheme.
var fullURLPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)

// bareDomainPattern matches a [www.]domain.tld[/path] form with no
// scheme, conservatively requiring a dot-separated host so it doesn't
// fire on ordinary prose.
var bareDomainPattern = regexp.MustCompile(`\b(?:www\.)?[a-zA-Z0-9][a-zA-Z0-9-]*(?:\.[a-zA-Z0-9][a-zA-Z0-9-]*)+(?:/[^\s<>"{}|\\^` + "`" + `\[\]]*)?`)

// validTLDs is the small set of TLDs accepted for bare-domain matches;
// an unbounded public-suffix list is out of scope, so only common TLDs
// are recognized and anything else is treated as ordinary prose rather
// than a URL.
var validTLDs = map[string]bool{
	"com": true, "org": true, "net": true, "io": true, "dev": true,
	"edu": true, "gov": true, "co": true, "app": true, "ai": true,
	"us": true, "uk": true, "info": true, "me": true,
}

var trailingPunct = ".,;:!?)]}\"'"

// ExtractURL scans chrome text (never content text) for a
// browser URL: a full http(s) match wins if its host's TLD is
// recognized; otherwise a bare
// [www.]domain.tld[/path] match is accepted if its TLD is recognized,
// and prefixed with https://. Trailing punctuation is stripped.
func ExtractURL(chromeText string) string {
	if m := fullURLPattern.FindString(chromeText); m != "" {
		if hasValidTLD(hostOf(m)) {
			return strings.TrimRight(m, trailingPunct)
		}
	}
	if m := bareDomainPattern.FindString(chromeText); m != "" {
		if hasValidTLD(hostOf("http://" + m)) {
			return "https://" + strings.TrimRight(m, trailingPunct)
		}
	}
	return ""
}

func hostOf(urlLike string) string {
	rest := strings.TrimPrefix(urlLike, "http://")
	rest = strings.TrimPrefix(rest, "https://")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func hasValidTLD(host string) bool {
	host = strings.TrimRight(host, trailingPunct)
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return false
	}
	return validTLDs[strings.ToLower(parts[len(parts)-1])]
}
