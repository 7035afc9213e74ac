package middleware

import (
	"net/http"
	"slices"
)

// Stack is an ordered middleware chain. The first entry is the outermost
// wrapper, so it sees the request first and the response last.
type Stack []func(http.Handler) http.Handler

// Use appends mw to the inner end of the chain.
func (s *Stack) Use(mw ...func(http.Handler) http.Handler) {
	*s = append(*s, mw...)
}

// Wrap returns h behind every middleware in s.
func (s Stack) Wrap(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(s) {
		h = mw(h)
	}
	return h
}

// Extend returns a new stack of s followed by mw. s is not modified.
func (s Stack) Extend(mw ...func(http.Handler) http.Handler) Stack {
	out := make(Stack, 0, len(s)+len(mw))
	return append(append(out, s...), mw...)
}
