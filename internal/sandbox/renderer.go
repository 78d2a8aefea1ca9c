package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	headOpenRe = regexp.MustCompile(`(?i)<head[^>]*>`)
	htmlOpenRe = regexp.MustCompile(`(?i)<html[^>]*>`)
	cspMetaRe  = regexp.MustCompile(`(?i)<meta[^>]+http-equiv\s*=\s*["']?content-security-policy`)
)

// PrepareDocument makes an arbitrary, untrusted document body safe to host:
// bare content with no document structure is wrapped in a minimal shell, and
// the content security policy is injected unless the document already
// declares one of its own.
func PrepareDocument(body string) string {
	doc := body
	if !hasDocumentStructure(doc) {
		doc = wrapInShell(doc)
	}
	if cspMetaRe.MatchString(doc) {
		return doc
	}
	return injectPolicyMeta(doc)
}

func hasDocumentStructure(doc string) bool {
	lower := strings.ToLower(doc)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype")
}

func wrapInShell(content string) string {
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n" +
		"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n" +
		"</head>\n<body>\n" + content + "\n</body>\n</html>"
}

func injectPolicyMeta(doc string) string {
	meta := fmt.Sprintf(`<meta http-equiv="Content-Security-Policy" content="%s">`, ContentSecurityPolicy)

	if loc := headOpenRe.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + "\n" + meta + doc[loc[1]:]
	}
	if loc := htmlOpenRe.FindStringIndex(doc); loc != nil {
		// No head element; synthesize one right after <html>.
		return doc[:loc[1]] + "\n<head>" + meta + "</head>" + doc[loc[1]:]
	}
	return meta + "\n" + doc
}
