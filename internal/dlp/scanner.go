// Package dlp detects sensitive data patterns in file content before upload
// and decides what to do with the findings. Detection and enforcement are
// separate: the Scanner only reports, the Policy maps findings to an action.
package dlp

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Category names a class of sensitive data.
type Category string

const (
	CategoryEmail      Category = "EMAIL"
	CategoryCreditCard Category = "CREDIT_CARD"
	CategoryPhone      Category = "PHONE"
	CategorySSN        Category = "SSN"
)

// Finding is one category plus its occurrence count. Categories with zero
// matches are never emitted.
type Finding struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Rule pairs a category with its detection pattern. Rules are data: adding a
// category means adding a Rule, not touching control flow.
type Rule struct {
	Category Category
	Pattern  string
}

// DefaultRules returns the built-in detector table.
func DefaultRules() []Rule {
	return []Rule{
		{CategoryEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`},
		{CategoryCreditCard, `\b(?:\d[ -]*?){13,16}\b`},
		{CategoryPhone, `\b(?:\+?1[-.]?)?\(?([0-9]{3})\)?[-. ]?([0-9]{3})[-. ]?([0-9]{4})\b`},
		{CategorySSN, `\b\d{3}-\d{2}-\d{4}\b`},
	}
}

type compiledRule struct {
	category Category
	expr     *regexp.Regexp
}

// Scanner runs an ordered set of compiled detectors over text content.
// A Scanner is immutable after construction and safe for concurrent use.
type Scanner struct {
	rules []compiledRule
}

// NewScanner compiles the given rules in order. An empty category or an
// invalid pattern is a configuration error.
func NewScanner(rules []Rule) (*Scanner, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(string(rule.Category)) == "" {
			return nil, fmt.Errorf("dlp: rule category is required")
		}
		expr, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("dlp: invalid pattern for rule %s: %w", rule.Category, err)
		}
		compiled = append(compiled, compiledRule{category: rule.Category, expr: expr})
	}
	return &Scanner{rules: compiled}, nil
}

// textExtensions are filename extensions scanned even without a text MIME type.
var textExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".json": {},
}

// IsTextContent reports whether the declared content type or the filename
// extension indicates plain text. Only such content is scanned; binary and
// unrecognized payloads are skipped to bound cost and avoid false positives.
func IsTextContent(name, contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	_, ok := textExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan runs every detector over the content and returns the sparse finding
// list. Non-text inputs and content that is not valid text yield an empty
// list: detection is best-effort and never fails an upload.
func (s *Scanner) Scan(name, contentType string, content []byte) []Finding {
	if !IsTextContent(name, contentType) {
		return nil
	}
	if !utf8.Valid(content) {
		return nil
	}

	text := string(content)
	var findings []Finding
	for _, rule := range s.rules {
		if n := len(rule.expr.FindAllStringIndex(text, -1)); n > 0 {
			findings = append(findings, Finding{Category: rule.category, Count: n})
		}
	}
	return findings
}

// Categories extracts the category names from a finding list, in order.
func Categories(findings []Finding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, string(f.Category))
	}
	return names
}
