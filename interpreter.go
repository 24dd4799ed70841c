package main

import (
	"fmt"
	"strings"
)

// RenderMode is what the UI does with a backend result. The three modes
// are mutually exclusive and checked in a fixed priority order:
// clarification beats a resolved class, because clarification is never
// final.
type RenderMode int

const (
	ModeNeedsClarification RenderMode = iota
	ModeClassified
	ModeUnclassified
)

func (m RenderMode) String() string {
	switch m {
	case ModeNeedsClarification:
		return "needs_clarification"
	case ModeClassified:
		return "classified"
	case ModeUnclassified:
		return "unclassified"
	}
	return fmt.Sprintf("RenderMode(%d)", int(m))
}

// ConfidenceBand groups confidence into the three display bands.
type ConfidenceBand int

const (
	BandNone ConfidenceBand = iota // not yet scored
	BandLow
	BandMedium
	BandHigh
)

// BandOf maps a confidence score to its band. The only defined
// thresholds: >= 0.90 is high, >= 0.70 is medium, everything else low.
func BandOf(confidence *float64) ConfidenceBand {
	if confidence == nil {
		return BandNone
	}
	switch {
	case *confidence >= 0.90:
		return BandHigh
	case *confidence >= 0.70:
		return BandMedium
	default:
		return BandLow
	}
}

// Marker returns the traffic-light emoji used in Slack messages.
func (b ConfidenceBand) Marker() string {
	switch b {
	case BandHigh:
		return "🟢"
	case BandMedium:
		return "🟡"
	case BandLow:
		return "🔴"
	}
	return "⚪"
}

// Outcome is the single display-ready shape both result schemas reduce
// to. The renderer only ever sees an Outcome; which endpoint produced it
// no longer matters.
type Outcome struct {
	Mode       RenderMode
	Stage      string
	Class      string
	Confidence *float64
	Questions  []string
	Reasoning  string

	// Provisional marks a class/confidence shown only as a hint while
	// clarification is pending.
	Provisional bool
}

// InterpretAgentResult classifies an agent-pipeline result into its
// render mode.
//
// Priority order:
//  1. questions present in the question_generation stage: render the
//     answer form, with any class as a provisional hint;
//  2. a real class (present and not the "нет классов" sentinel);
//  3. everything else is unclassified.
func InterpretAgentResult(r ClassificationResult) Outcome {
	if r.Stage == StageQuestionGeneration && len(r.Questions) > 0 {
		return Outcome{
			Mode:        ModeNeedsClarification,
			Stage:       r.Stage,
			Class:       r.TicketClass,
			Confidence:  r.Confidence,
			Questions:   r.Questions,
			Reasoning:   r.Reasoning,
			Provisional: r.TicketClass != "",
		}
	}
	if r.TicketClass != "" && r.TicketClass != NoClassSentinel {
		return Outcome{
			Mode:       ModeClassified,
			Stage:      r.Stage,
			Class:      r.TicketClass,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
		}
	}
	return Outcome{
		Mode:      ModeUnclassified,
		Stage:     r.Stage,
		Reasoning: r.Reasoning,
	}
}

// InterpretSession interprets the result currently held by a session.
func InterpretSession(s Session) Outcome {
	return InterpretAgentResult(ClassificationResult{
		Stage:         s.Stage,
		TicketClass:   s.TicketClass,
		Confidence:    s.Confidence,
		Questions:     s.Questions,
		ProcessedText: s.ProcessedText,
		Reasoning:     s.Reasoning,
	})
}

// InterpretLegacyResult maps a single-shot analysis result onto the same
// outcome shape. The legacy endpoint has no follow-up call, so it can
// never produce a clarification mode; an irrelevant ticket or an empty
// match list is unclassified, otherwise the top match wins.
func InterpretLegacyResult(r AnalysisResult) Outcome {
	if !r.IsRelevant || len(r.Matches) == 0 {
		reason := r.Metadata.RelevanceReason
		if reason == "" {
			reason = r.Metadata.Message
		}
		return Outcome{
			Mode:      ModeUnclassified,
			Stage:     StageCompleted,
			Reasoning: reason,
		}
	}

	top := r.Matches[0]
	confidence := top.Confidence
	reasoning := top.Reasoning
	if top.Category != "" {
		reasoning = strings.TrimSpace(fmt.Sprintf("Категория: %s. %s", top.Category, reasoning))
	}
	return Outcome{
		Mode:       ModeClassified,
		Stage:      StageCompleted,
		Class:      top.WorkTypeName,
		Confidence: &confidence,
		Reasoning:  reasoning,
	}
}
