package intent

import (
	"strings"

	"bellavista/internal/matching"
	"bellavista/internal/models"
)

var positiveWords = map[string]bool{
	"great": true, "awesome": true, "love": true, "thanks": true, "thank": true, "perfect": true,
	"delicious": true, "amazing": true, "excellent": true, "wonderful": true, "happy": true,
	"nice": true, "good": true, "fantastic": true, "yummy": true, "glad": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true, "angry": true, "annoyed": true,
	"annoying": true, "frustrated": true, "frustrating": true, "upset": true, "wrong": true,
	"slow": true, "disappointed": true, "worst": true, "horrible": true, "ridiculous": true,
	"useless": true, "confused": true, "waiting": true, "sad": true,
}

var intensifiers = map[string]bool{
	"very": true, "really": true, "so": true, "extremely": true, "totally": true,
	"absolutely": true, "super": true, "incredibly": true,
}

var negations = map[string]bool{"not": true, "no": true, "never": true, "dont": true, "isnt": true, "wasnt": true}

// DetectMood runs keyword sentiment detection on a user utterance.
func DetectMood(text string) models.Mood {
	tokens := matching.Tokenize(text)

	pos, neg, strength := 0, 0, 0
	for i, tok := range tokens {
		negated := i > 0 && negations[tokens[i-1]]
		switch {
		case positiveWords[tok] && negated:
			neg++
		case positiveWords[tok]:
			pos++
		case negativeWords[tok] && negated:
			pos++
		case negativeWords[tok]:
			neg++
		case intensifiers[tok]:
			strength++
		}
	}
	strength += strings.Count(text, "!")
	if isShouting(text) {
		strength += 2
	}

	mood := models.Mood{Emotion: models.EmotionNeutral, Intensity: models.IntensityLow}
	switch {
	case neg > pos:
		mood.Emotion = models.EmotionNegative
		strength += neg
	case pos > neg:
		mood.Emotion = models.EmotionPositive
		strength += pos
	default:
		return mood
	}

	switch {
	case strength >= 3:
		mood.Intensity = models.IntensityHigh
	case strength == 2:
		mood.Intensity = models.IntensityMedium
	}
	return mood
}

// EmpathyFor returns the empathy level a mood calls for.
func EmpathyFor(mood models.Mood) string {
	if mood.Emotion == models.EmotionNegative && mood.Intensity != models.IntensityLow {
		return models.EmpathyHigh
	}
	return models.EmpathyStandard
}

func isShouting(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		}
		if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters >= 8 && upper*10 >= letters*8
}
