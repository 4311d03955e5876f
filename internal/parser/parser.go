// Package parser decodes pasted plain-text questions into drafts for authoring.
package parser

import (
	"regexp"
	"strings"

	"dus-exam-service/internal/domain"
)

var (
	answerMarkerPattern = regexp.MustCompile(`(?i)(?:Doğru\s*)?Cevap:\s*([A-E])`)
	optionMarkerPattern = regexp.MustCompile(`[A-E]\)`)
	numberingPattern    = regexp.MustCompile(`(?i)^\d+\.\s*(?:Soru:)?\s*`)
)

// ParseQuestionText reads one question followed by options A) .. E) and an
// optional "Cevap: X" / "Doğru Cevap: X" marker. Malformed input returns
// domain.ErrFormatNotRecognized and an empty draft.
//
// Without a marker the answer key defaults to the first option and is tagged
// domain.AnswerDefaulted so callers can flag it for manual correction.
func ParseQuestionText(raw string) (domain.QuestionDraft, error) {
	text := raw
	if strings.TrimSpace(text) == "" {
		return domain.QuestionDraft{}, domain.ErrFormatNotRecognized
	}

	answer := domain.AnswerKey{Index: 0, Source: domain.AnswerDefaulted}
	if loc := answerMarkerPattern.FindStringSubmatchIndex(text); loc != nil {
		letter := strings.ToUpper(text[loc[2]:loc[3]])
		answer = domain.AnswerKey{Index: int(letter[0] - 'A'), Source: domain.AnswerDetected}
		text = text[:loc[0]] + text[loc[1]:]
	}

	parts := optionMarkerPattern.Split(text, -1)
	if len(parts) < domain.OptionCount+1 {
		return domain.QuestionDraft{}, domain.ErrFormatNotRecognized
	}

	question := numberingPattern.ReplaceAllString(strings.TrimSpace(parts[0]), "")
	options := make([]string, domain.OptionCount)
	for i := range options {
		options[i] = strings.TrimSpace(parts[i+1])
	}

	return domain.QuestionDraft{
		Text:    question,
		Options: options,
		Answer:  answer,
	}, nil
}
