// Package intent extracts ordering intents from free text without the AI service.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"bellavista/internal/matching"
	"bellavista/internal/models"
)

// FillerWords are dropped from candidate item names.
var FillerWords = map[string]bool{
	"to": true, "the": true, "please": true, "order": true, "add": true, "give": true,
	"me": true, "my": true, "get": true, "need": true, "more": true, "want": true,
	"like": true, "would": true, "could": true, "can": true, "have": true, "some": true,
	"also": true, "just": true, "thanks": true, "i'd": true, "i'll": true, "i'm": true,
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "us": true, "them": true, "him": true, "her": true,
}

var (
	anchorPattern      = regexp.MustCompile(`\b(\d+)\s+`)
	conjunctionPattern = regexp.MustCompile(`(?i)\s+and\s+|\s*,\s*|\s*&\s*`)
	leadingVerbPattern = regexp.MustCompile(`(?i)^\s*(add|remove|increase|decrease)\s+(?:(\d+)\s+)?(.+?)\s*$`)
	verbPattern        = regexp.MustCompile(`(?i)\b(add|remove|delete|take\s+out|increase|decrease|reduce)\b`)
)

var edgeWords = map[string]bool{"and": true, "&": true, "or": true, "of": true, "with": true}

// Parser finds (quantity, name) pairs in utterances.
type Parser struct {
	matcher *matching.Matcher
}

// NewParser creates a parser that uses m to decide where multi-word names end.
func NewParser(m *matching.Matcher) *Parser {
	return &Parser{matcher: m}
}

// Matcher returns the matcher used for greedy merging.
func (p *Parser) Matcher() *matching.Matcher {
	return p.matcher
}

type anchor struct {
	quantity   int
	start, end int
}

// ParseItems returns every item mentioned in text. Fragments that do not resolve are
// returned with quantity 1 so callers can decide what to do with them.
func (p *Parser) ParseItems(text string) []models.ParsedItem {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	converted := matching.ReplaceQuantityWords(text)
	verb := leadingVerb(converted)

	if items := p.parseExplicit(converted, verb); len(items) > 0 {
		return items
	}
	if items := p.parseConjunctions(converted, verb); len(items) > 0 {
		return items
	}
	if item, ok := p.parseLeadingVerb(converted); ok {
		return []models.ParsedItem{item}
	}
	if name := CleanCandidate(converted); name != "" {
		return []models.ParsedItem{{Name: name, Quantity: 1}}
	}
	return nil
}

// parseExplicit reads "<qty> <name>" runs; each name ends where the next quantity starts.
func (p *Parser) parseExplicit(s, verb string) []models.ParsedItem {
	var anchors []anchor
	for _, loc := range anchorPattern.FindAllStringSubmatchIndex(s, -1) {
		n, err := strconv.Atoi(s[loc[2]:loc[3]])
		if err != nil || n < 1 || n > matching.MaxQuantity {
			continue
		}
		anchors = append(anchors, anchor{quantity: n, start: loc[0], end: loc[1]})
	}

	var items []models.ParsedItem
	for i, a := range anchors {
		end := len(s)
		if i+1 < len(anchors) {
			end = anchors[i+1].start
		}
		name := CleanCandidate(s[a.end:end])
		if name == "" {
			continue
		}
		items = append(items, models.ParsedItem{Name: name, Quantity: a.quantity, Action: verb})
	}
	if len(items) == 0 {
		return nil
	}

	// words before the first quantity may name items of their own ("fish and chips and 2 ...");
	// a prefix holding an out-of-range quantity stays ignored
	prefix := verbPattern.ReplaceAllString(s[:anchors[0].start], " ")
	if CleanCandidate(prefix) != "" && !strings.ContainsAny(prefix, "0123456789") {
		if leading := p.parseConjunctions(prefix, verb); len(leading) > 0 {
			items = append(leading, items...)
		}
	}
	return items
}

// parseConjunctions splits on and/comma/ampersand, then greedily re-joins the longest run
// of parts that names a catalog item, so "fish and chips" survives the split.
func (p *Parser) parseConjunctions(s, verb string) []models.ParsedItem {
	parts := conjunctionPattern.Split(s, -1)

	var items []models.ParsedItem
	resolved := 0
	for i := 0; i < len(parts); {
		taken := 0
		for j := len(parts) - 1; j >= i; j-- {
			name := CleanCandidate(strings.Join(parts[i:j+1], " and "))
			if name == "" {
				continue
			}
			if p.matcher != nil && p.matcher.Match(name).Strategy.Confident() {
				items = append(items, models.ParsedItem{Name: name, Quantity: 1, Action: verb})
				resolved++
				taken = j - i + 1
				break
			}
		}
		if taken == 0 {
			if name := CleanCandidate(parts[i]); name != "" {
				items = append(items, models.ParsedItem{Name: name, Quantity: 1})
			}
			taken = 1
		}
		i += taken
	}

	if resolved == 0 {
		return nil
	}
	return items
}

func (p *Parser) parseLeadingVerb(s string) (models.ParsedItem, bool) {
	m := leadingVerbPattern.FindStringSubmatch(s)
	if m == nil {
		return models.ParsedItem{}, false
	}
	name := CleanCandidate(m[3])
	if name == "" {
		return models.ParsedItem{}, false
	}
	qty := 1
	if m[2] != "" {
		if n, err := strconv.Atoi(m[2]); err == nil && n >= 1 && n <= matching.MaxQuantity {
			qty = n
		}
	}
	return models.ParsedItem{Name: name, Quantity: qty, Action: strings.ToLower(m[1])}, true
}

// CleanCandidate strips filler words, punctuation and dangling conjunctions from a
// candidate name while keeping the user's casing.
func CleanCandidate(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"()")
		if w == "" || FillerWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
	}
	for len(kept) > 0 && edgeWords[strings.ToLower(kept[0])] {
		kept = kept[1:]
	}
	for len(kept) > 0 && edgeWords[strings.ToLower(kept[len(kept)-1])] {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, " ")
}

// leadingVerb returns the item action named before any quantity in s.
func leadingVerb(s string) string {
	prefix := s
	if loc := anchorPattern.FindStringIndex(s); loc != nil {
		prefix = s[:loc[0]]
	}
	m := verbPattern.FindStringSubmatch(prefix)
	if m == nil {
		return ""
	}
	switch v := strings.ToLower(strings.Join(strings.Fields(m[1]), " ")); v {
	case "add":
		return models.ItemActionAdd
	case "remove", "delete", "take out":
		return models.ItemActionRemove
	case "increase":
		return models.ItemActionIncrease
	default:
		return models.ItemActionDecrease
	}
}
