package imzml

import "strings"

// The document is parsed one line at a time: every element of interest sits
// on its own line, as written by all common imzML exporters.

type lineKind int

const (
	lineOther lineKind = iota
	lineStart
	lineEnd
	lineEmpty // self-closing element such as cvParam
)

func classify(line string) lineKind {
	switch {
	case strings.Contains(line, "</"):
		return lineEnd
	case strings.HasSuffix(line, "/>"):
		return lineEmpty
	case strings.HasPrefix(line, "<"):
		return lineStart
	}
	return lineOther
}

var unescaper = strings.NewReplacer("&quot;", `"`, "&apos;", "'", "&lt;", "<", "&gt;", ">", "&amp;", "&")

// attr returns the value of attribute key. The key must be preceded by
// whitespace, so "name" does not match "unitName".
func attr(line, key string) (string, bool) {
	needle := key + `="`
	from := 0
	for {
		p := strings.Index(line[from:], needle)
		if p < 0 {
			return "", false
		}
		p += from
		if p > 0 && (line[p-1] == ' ' || line[p-1] == '\t') {
			s := p + len(needle)
			e := strings.IndexByte(line[s:], '"')
			if e < 0 {
				return "", false
			}
			v := line[s : s+e]
			if strings.IndexByte(v, '&') >= 0 {
				v = unescaper.Replace(v)
			}
			return v, true
		}
		from = p + len(needle)
	}
}

func attrOr(line, key string) string {
	v, _ := attr(line, key)
	return v
}

// tagName returns the element name of a start or empty element line.
func tagName(line string) string {
	p := strings.IndexByte(line, '<')
	if p < 0 {
		return ""
	}
	rest := line[p+1:]
	if e := strings.IndexAny(rest, " \t>/"); e >= 0 {
		return rest[:e]
	}
	return rest
}

// isRunStart reports whether line opens the run element, after which the
// spectrum metadata begins.
func isRunStart(line string) bool {
	return tagName(line) == "run" && classify(line) == lineStart
}

// qualified returns the context specific handler key.
func qualified(accession, context string) string {
	return accession + "[" + context + "]"
}
