package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"bellavista/internal/intent"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

// Counts tallies true positives, false positives and false negatives.
type Counts struct {
	TP, FP, FN int
}

// Precision returns TP / (TP + FP), or 0 when nothing was predicted.
func (c Counts) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall returns TP / (TP + FN), or 0 when nothing was expected.
func (c Counts) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// F1 returns the harmonic mean of precision and recall.
func (c Counts) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// scoreMatches runs the matcher over labelled lookups.
// A wrong item counts as both a false positive and a false negative.
func scoreMatches(m *matching.Matcher, cases []MatchCase) (map[string]float64, []Failure) {
	var (
		counts          Counts
		correct, falses int
		negatives       int
		loose           int
		failures        []Failure
	)

	for _, c := range cases {
		match := m.Match(c.Query)
		got := ""
		if match.Found() {
			got = match.Item.Name
			if match.Strategy == matching.StrategyLoose {
				loose++
			}
		}

		switch {
		case strings.EqualFold(got, c.Want):
			correct++
			if got != "" {
				counts.TP++
			}
		case c.Want == "":
			counts.FP++
		case got == "":
			counts.FN++
		default:
			counts.FP++
			counts.FN++
		}
		if c.Want == "" {
			negatives++
			if got != "" {
				falses++
			}
		}
		if !strings.EqualFold(got, c.Want) {
			failures = append(failures, Failure{Kind: "match", Input: c.Query, Want: c.Want, Got: got})
		}
	}

	if len(cases) == 0 {
		return map[string]float64{}, nil
	}
	return map[string]float64{
		"match_accuracy":    ratio(correct, len(cases)),
		"match_precision":   counts.Precision(),
		"match_recall":      counts.Recall(),
		"false_match_rate":  ratio(falses, negatives),
		"loose_match_share": ratio(loose, len(cases)),
	}, failures
}

// scoreParses compares parsed (item, quantity) pairs with the labels. Names on both sides are
// resolved against the menu first so "pizzas" and "Margherita Pizza" compare equal when they
// resolve to the same item.
func scoreParses(p *intent.Parser, cases []ParseCase) (map[string]float64, []Failure) {
	var (
		counts   Counts
		exact    int
		failures []Failure
	)
	m := p.Matcher()

	for _, c := range cases {
		want := itemBag(m, c.Items)
		got := itemBag(m, p.ParseItems(c.Text))

		matched := 0
		for key, n := range want {
			if g := got[key]; g < n {
				matched += g
			} else {
				matched += n
			}
		}
		wantTotal, gotTotal := bagSize(want), bagSize(got)
		counts.TP += matched
		counts.FN += wantTotal - matched
		counts.FP += gotTotal - matched

		if matched == wantTotal && matched == gotTotal {
			exact++
			continue
		}
		failures = append(failures, Failure{Kind: "parse", Input: c.Text, Want: describeBag(want), Got: describeBag(got)})
	}

	if len(cases) == 0 {
		return map[string]float64{}, nil
	}
	return map[string]float64{
		"parse_exact":     ratio(exact, len(cases)),
		"parse_precision": counts.Precision(),
		"parse_recall":    counts.Recall(),
		"parse_f1":        counts.F1(),
	}, failures
}

// scoreIntents checks the action picked by the keyword responder.
func scoreIntents(r intent.Responder, cases []IntentCase, cart models.CartSnapshot) (map[string]float64, []Failure) {
	var (
		correct  int
		failures []Failure
	)
	for _, c := range cases {
		got := r.Respond(c.Text, cart, models.EmpathyStandard).Action.Kind
		if got == c.Action {
			correct++
			continue
		}
		failures = append(failures, Failure{Kind: "intent", Input: c.Text, Want: string(c.Action), Got: string(got)})
	}

	if len(cases) == 0 {
		return map[string]float64{}, nil
	}
	return map[string]float64{"intent_accuracy": ratio(correct, len(cases))}, failures
}

// itemBag maps "name|quantity" to its count, names resolved to menu items where possible.
func itemBag(m *matching.Matcher, items []models.ParsedItem) map[string]int {
	bag := make(map[string]int, len(items))
	for _, item := range items {
		name := strings.ToLower(strings.TrimSpace(item.Name))
		if resolved, ok := m.Find(item.Name); ok {
			name = strings.ToLower(resolved.Name)
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		bag[fmt.Sprintf("%s|%d", name, qty)]++
	}
	return bag
}

func bagSize(bag map[string]int) int {
	n := 0
	for _, c := range bag {
		n += c
	}
	return n
}

func describeBag(bag map[string]int) string {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// SweepThresholds measures matching accuracy for each candidate score threshold. The confident
// and loose cutoffs stay at their defaults.
func SweepThresholds(items []models.MenuItem, cases []MatchCase, candidates []float64) []SweepPoint {
	points := make([]SweepPoint, 0, len(candidates))
	for _, threshold := range candidates {
		t := matching.DefaultThresholds
		t.Match = threshold
		scores, _ := scoreMatches(matching.NewMatcher(items, matching.WithThresholds(t)), cases)
		points = append(points, SweepPoint{
			Threshold: threshold,
			Accuracy:  scores["match_accuracy"],
			LooseRate: scores["loose_match_share"],
		})
	}
	return points
}

// BestThreshold returns the sweep point with the highest accuracy, preferring fewer loose
// matches and then the lower threshold on ties.
func BestThreshold(points []SweepPoint) (SweepPoint, bool) {
	if len(points) == 0 {
		return SweepPoint{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		switch {
		case p.Accuracy > best.Accuracy:
			best = p
		case p.Accuracy == best.Accuracy && p.LooseRate < best.LooseRate:
			best = p
		case p.Accuracy == best.Accuracy && p.LooseRate == best.LooseRate && p.Threshold < best.Threshold:
			best = p
		}
	}
	return best, true
}
