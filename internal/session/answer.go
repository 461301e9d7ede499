package session

import "strings"

// CheckAnswer reports whether the trimmed answer occurs anywhere in the key,
// ignoring case. An empty answer is contained in every key.
func CheckAnswer(userAnswer, answerKey string) bool {
	return strings.Contains(strings.ToLower(answerKey), strings.ToLower(strings.TrimSpace(userAnswer)))
}
