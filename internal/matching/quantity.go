package matching

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxQuantity is the largest numeric quantity accepted from free text.
const MaxQuantity = 50

// NumberWords maps spelled-out numbers to their values.
var NumberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

// QuantityIdioms maps fixed phrases to their values. Longer phrases must be listed
// before their prefixes in idiomAlternation.
var QuantityIdioms = map[string]int{
	"half a dozen": 6, "a half dozen": 6, "half dozen": 6,
	"a dozen": 12, "dozen": 12,
	"a couple of": 2, "a couple": 2, "couple": 2,
	"a few": 3, "few": 3,
	"several": 4,
	"an": 1, "a": 1,
}

const idiomAlternation = `half a dozen|a half dozen|half dozen|a dozen|a couple of|a couple|a few|several|couple|few|dozen|an|a`

const numberWordAlternation = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|` +
	`thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty`

var (
	digitQuantityPattern = regexp.MustCompile(`\b(\d+)\s*(?:pieces?|items?|orders?|servings?)?\b`)
	numberWordPattern    = regexp.MustCompile(`\b(` + numberWordAlternation + `)\b`)
	idiomPattern         = regexp.MustCompile(`\b(` + idiomAlternation + `)\b`)
	quantityWordPattern  = regexp.MustCompile(`(?i)\b(` + numberWordAlternation + `|` + idiomAlternation + `)\b`)
)

// ExtractQuantity finds the quantity requested in text. Digits 1..MaxQuantity win over
// number words, which win over idioms. The result is never below 1.
func ExtractQuantity(text string) int {
	s := Normalize(text)

	for _, m := range digitQuantityPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= MaxQuantity {
			return n
		}
	}

	if m := numberWordPattern.FindStringSubmatch(s); m != nil {
		return NumberWords[m[1]]
	}

	if m := idiomPattern.FindStringSubmatch(s); m != nil {
		if n, ok := QuantityIdioms[m[1]]; ok {
			return n
		}
	}

	return 1
}

// ReplaceQuantityWords rewrites number words, idioms and articles as digits,
// leaving the rest of text untouched.
func ReplaceQuantityWords(text string) string {
	return quantityWordPattern.ReplaceAllStringFunc(text, func(word string) string {
		w := strings.ToLower(word)
		if n, ok := NumberWords[w]; ok {
			return strconv.Itoa(n)
		}
		if n, ok := QuantityIdioms[w]; ok {
			return strconv.Itoa(n)
		}
		return word
	})
}
