package main

import "strings"

// Session is the state of one classification flow: the latest pipeline
// result plus the user's answers-in-progress. It is a value type and all
// transitions return a new value, so a Session can never be half-updated
// by a transition that bails out.
//
// Invariant: PendingAnswers always has exactly len(Questions) entries,
// and both are nil outside a clarification round.
type Session struct {
	Stage          string
	TicketClass    string
	Confidence     *float64
	Questions      []string
	ProcessedText  string
	Reasoning      string
	PendingAnswers []string
}

// ApplyResult overwrites the session with a backend result. A new round
// of questions always starts with blank answers; a result without
// questions ends the clarification round and drops whatever was typed.
func (s Session) ApplyResult(r ClassificationResult) Session {
	next := Session{
		Stage:         r.Stage,
		TicketClass:   r.TicketClass,
		Confidence:    r.Confidence,
		ProcessedText: r.ProcessedText,
		Reasoning:     r.Reasoning,
	}
	if len(r.Questions) > 0 {
		next.Questions = append([]string(nil), r.Questions...)
		next.PendingAnswers = make([]string, len(r.Questions))
	}
	return next
}

// EditAnswer records the user's answer to one question. Outside a
// clarification round, or out of bounds, it is a no-op.
func (s Session) EditAnswer(index int, value string) Session {
	if s.Stage != StageQuestionGeneration {
		return s
	}
	if index < 0 || index >= len(s.PendingAnswers) {
		return s
	}
	next := s
	next.PendingAnswers = append([]string(nil), s.PendingAnswers...)
	next.PendingAnswers[index] = value
	return next
}

// Reset returns the empty session. Used when a fresh ticket text starts
// a new flow.
func (s Session) Reset() Session {
	return Session{}
}

// AwaitingAnswers reports whether the session is in a clarification
// round with questions on the table.
func (s Session) AwaitingAnswers() bool {
	return s.Stage == StageQuestionGeneration && len(s.Questions) > 0
}

// CanSubmitAnswers reports whether the answer set is complete enough to
// send: a clarification round is open, the normalized text needed for
// resubmission is present, and every answer is non-blank. Partial answer
// sets are never sent.
func (s Session) CanSubmitAnswers() bool {
	if !s.AwaitingAnswers() || s.ProcessedText == "" {
		return false
	}
	if len(s.PendingAnswers) != len(s.Questions) {
		return false
	}
	for _, a := range s.PendingAnswers {
		if strings.TrimSpace(a) == "" {
			return false
		}
	}
	return true
}
