// Package router picks an endpoint for a free-text prompt and dispatches
// to it.
package router

import (
	"regexp"
	"strings"
)

type RequestType string

const (
	TypeVision          RequestType = "vision"
	TypeImageGeneration RequestType = "image-generation"
	TypeSpeech          RequestType = "speech"
	TypeTranscription   RequestType = "transcription"
	TypeEmbedding       RequestType = "embedding"
	TypeModeration      RequestType = "moderation"
	TypeChat            RequestType = "chat"
)

var AllTypes = []RequestType{
	TypeVision, TypeImageGeneration, TypeSpeech, TypeTranscription,
	TypeEmbedding, TypeModeration, TypeChat,
}

func ParseRequestType(s string) (RequestType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

var (
	imageVerbOnly  = regexp.MustCompile(`(?i)\b(draw|paint|sketch|illustrate)\b`)
	imageVerbNoun  = regexp.MustCompile(`(?i)\b(create|generate|make|design|render)\b.*\b(images?|pictures?|photos?|illustrations?|artworks?|drawings?|paintings?|logos?)\b`)
	speechIntent   = regexp.MustCompile(`(?i)\b(say|speak|voice|audio|speech|read aloud|pronounce)\b`)
	transcribe     = regexp.MustCompile(`(?i)\b(transcribe|transcription|transcript|dictation)\b`)
	embedIntent    = regexp.MustCompile(`(?i)\b(embed|embeds|embedding|embeddings|similarity|vectors?)\b`)
	moderateIntent = regexp.MustCompile(`(?i)\b(moderate|moderation|policy|policies|violations?|violates?|appropriate|inappropriate)\b`)
)

// Classify is a pure function of its inputs. Rules are checked in a fixed
// order and the first match wins.
func Classify(text string, hasImages bool) RequestType {
	switch {
	case hasImages:
		return TypeVision
	case imageVerbOnly.MatchString(text) || imageVerbNoun.MatchString(text):
		return TypeImageGeneration
	case speechIntent.MatchString(text):
		return TypeSpeech
	case transcribe.MatchString(text):
		return TypeTranscription
	case embedIntent.MatchString(text):
		return TypeEmbedding
	case moderateIntent.MatchString(text):
		return TypeModeration
	default:
		return TypeChat
	}
}
