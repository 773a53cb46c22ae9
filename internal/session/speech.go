package session

import (
	"regexp"
	"strings"
)

// Recognizer is the speech-to-text capability. Results arrive through the controller's
// OnTranscript, OnSpeechError and OnSpeechEnd callbacks.
type Recognizer interface {
	Start() error
	Stop() error
}

// Synthesizer is the text-to-speech capability. Playback progress arrives through
// OnSpeakStart and OnSpeakEnd.
type Synthesizer interface {
	Speak(text string) error
}

// SpeechErrorKind classifies recognition failures.
type SpeechErrorKind string

const (
	SpeechNoSpeech     SpeechErrorKind = "no-speech"
	SpeechAudioCapture SpeechErrorKind = "audio-capture"
	SpeechNotAllowed   SpeechErrorKind = "not-allowed"
	SpeechNetwork      SpeechErrorKind = "network"
	SpeechOther        SpeechErrorKind = "other"
)

// SpeechErrorMessage returns the assistant message shown for a recognition failure.
func SpeechErrorMessage(kind SpeechErrorKind) string {
	switch kind {
	case SpeechNoSpeech:
		return "I didn't hear anything. Please try speaking again."
	case SpeechAudioCapture:
		return "I couldn't access your microphone. Please check that it is connected."
	case SpeechNotAllowed:
		return "Microphone access was denied. Please allow microphone access or type your message."
	case SpeechNetwork:
		return "A network error interrupted voice recognition. Please try again or type your message."
	default:
		return "Voice recognition ran into a problem. Please try again or type your message."
	}
}

var (
	speechFencePattern  = regexp.MustCompile("(?s)```.*?```")
	speechBlockPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	speechMarkupPattern = regexp.MustCompile(`[*_#` + "`" + `~>|\[\]{}]+`)
	speechSpacePattern  = regexp.MustCompile(`\s+`)
)

// SanitizeSpeech strips JSON, braces, markdown and line breaks from text passed to a
// Synthesizer.
func SanitizeSpeech(text string) string {
	text = speechFencePattern.ReplaceAllString(text, " ")
	text = speechBlockPattern.ReplaceAllString(text, " ")
	text = speechMarkupPattern.ReplaceAllString(text, " ")
	text = speechSpacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
