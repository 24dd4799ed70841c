package main

import (
	"errors"
	"strings"
	"sync"
)

// Validation failures, rejected before any network call.
var (
	ErrEmptyText         = errors.New("ticket text is empty")
	ErrRequestInFlight   = errors.New("a request is already in flight for this session")
	ErrNoOpenQuestions   = errors.New("no clarification round is open")
	ErrIncompleteAnswers = errors.New("every question must have a non-blank answer")
	ErrSessionReplaced   = errors.New("the session these answers belong to was replaced")
)

// errStaleResponse marks a backend response that arrived after its
// session was reset or replaced. It is dropped, never shown to the user.
var errStaleResponse = errors.New("response for a stale session discarded")

// Controller sequences the classification round-trips for one session
// and is its only writer. At most one request is in flight at a time; a
// concurrent call is rejected, not queued, so two responses can never
// interleave their stage updates.
type Controller struct {
	client *ClassifierClient

	mu         sync.Mutex
	session    Session
	inFlight   bool
	generation uint64
}

func NewController(client *ClassifierClient) *Controller {
	return &Controller{client: client}
}

// Generation identifies the current session instance. It changes every
// time the session is reset or replaced, so UI artifacts minted for an
// older session (an open modal, say) can be recognized as stale.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Reset discards the session. Any response still in flight for the old
// session will be dropped when it lands.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = c.session.Reset()
	c.generation++
}

// EditAnswer records the user's answer to question index. No-op outside
// a clarification round.
func (c *Controller) EditAnswer(index int, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = c.session.EditAnswer(index, value)
}

// StartClassification begins a fresh flow for rawText. The previous
// session is replaced wholesale before the request goes out, so a new
// ticket never inherits stale questions or answers. On transport failure
// the session stays empty and the same text can simply be resubmitted.
func (c *Controller) StartClassification(rawText string) (Session, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return c.Session(), ErrEmptyText
	}

	c.mu.Lock()
	if c.inFlight {
		s := c.session
		c.mu.Unlock()
		return s, ErrRequestInFlight
	}
	c.session = c.session.Reset()
	c.generation++
	gen := c.generation
	c.inFlight = true
	c.mu.Unlock()

	result, err := c.client.Classify(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.generation != gen {
		return c.session, errStaleResponse
	}
	if err != nil {
		return c.session, err
	}
	c.session = c.session.ApplyResult(*result)
	return c.session, nil
}

// SubmitAnswers sends the completed answer set of the open clarification
// round. All-or-nothing: it refuses to run until every answer is filled
// in. On transport failure the session, typed answers included, is left
// untouched so the user can resubmit without retyping.
func (c *Controller) SubmitAnswers() (Session, error) {
	c.mu.Lock()
	return c.finishRound(c.generation, nil)
}

// SubmitAnswersFor records answers and submits them in one step, but
// only if gen still identifies the live session. The check and the
// writes happen under the same lock, so answers minted for a replaced
// session (a modal that outlived its flow) can never land in the round
// of a newer one.
func (c *Controller) SubmitAnswersFor(gen uint64, answers []string) (Session, error) {
	c.mu.Lock()
	if c.generation != gen {
		s := c.session
		c.mu.Unlock()
		return s, ErrSessionReplaced
	}
	return c.finishRound(gen, answers)
}

// finishRound is the shared tail of both submit paths. Entered with
// c.mu held; releases it around the network call.
func (c *Controller) finishRound(gen uint64, answers []string) (Session, error) {
	if c.inFlight {
		s := c.session
		c.mu.Unlock()
		return s, ErrRequestInFlight
	}
	if !c.session.AwaitingAnswers() {
		s := c.session
		c.mu.Unlock()
		return s, ErrNoOpenQuestions
	}
	for i, a := range answers {
		c.session = c.session.EditAnswer(i, a)
	}
	if !c.session.CanSubmitAnswers() {
		s := c.session
		c.mu.Unlock()
		return s, ErrIncompleteAnswers
	}
	processedText := c.session.ProcessedText
	questions := append([]string(nil), c.session.Questions...)
	pending := append([]string(nil), c.session.PendingAnswers...)
	c.inFlight = true
	c.mu.Unlock()

	result, err := c.client.ClassifyWithAnswers(processedText, questions, pending)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.generation != gen {
		return c.session, errStaleResponse
	}
	if err != nil {
		return c.session, err
	}
	c.session = c.session.ApplyResult(*result)
	return c.session, nil
}

// IsStaleResponse reports whether err is a dropped stale response.
func IsStaleResponse(err error) bool {
	return errors.Is(err, errStaleResponse)
}
