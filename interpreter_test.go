package main

import "testing"

func TestInterpretAgentResultPriorityOrder(t *testing.T) {
	// Questions plus a resolved class still renders as clarification:
	// clarification is never final.
	r := ClassificationResult{
		Stage:         StageQuestionGeneration,
		TicketClass:   "Ремонт оборудования",
		Confidence:    floatPtr(0.6),
		Questions:     []string{"В каком корпусе?"},
		ProcessedText: "текст",
	}
	outcome := InterpretAgentResult(r)
	if outcome.Mode != ModeNeedsClarification {
		t.Fatalf("Mode = %s, want needs_clarification", outcome.Mode)
	}
	if !outcome.Provisional {
		t.Error("class present during clarification must be marked provisional")
	}
}

func TestInterpretAgentResultModes(t *testing.T) {
	tests := []struct {
		name string
		r    ClassificationResult
		want RenderMode
	}{
		{
			name: "completed with class",
			r:    ClassificationResult{Stage: StageCompleted, TicketClass: "Ремонт оборудования", Confidence: floatPtr(0.95)},
			want: ModeClassified,
		},
		{
			name: "ml stage with class",
			r:    ClassificationResult{Stage: StageMLClassification, TicketClass: "Настройка ПО", Confidence: floatPtr(0.92)},
			want: ModeClassified,
		},
		{
			name: "sentinel class",
			r:    ClassificationResult{Stage: StageCompleted, TicketClass: NoClassSentinel},
			want: ModeUnclassified,
		},
		{
			name: "missing class",
			r:    ClassificationResult{Stage: StageCompleted},
			want: ModeUnclassified,
		},
		{
			name: "question stage without questions",
			r:    ClassificationResult{Stage: StageQuestionGeneration, TicketClass: "Класс"},
			want: ModeClassified,
		},
		{
			name: "questions outside question stage",
			r:    ClassificationResult{Stage: StageCompleted, Questions: []string{"Вопрос?"}, TicketClass: "Класс"},
			want: ModeClassified,
		},
		{
			name: "unknown stage with class",
			r:    ClassificationResult{Stage: "hyperspace_analysis", TicketClass: "Класс"},
			want: ModeClassified,
		},
		{
			name: "unknown stage without class",
			r:    ClassificationResult{Stage: "hyperspace_analysis"},
			want: ModeUnclassified,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretAgentResult(tt.r)
			if got.Mode != tt.want {
				t.Errorf("Mode = %s, want %s", got.Mode, tt.want)
			}
		})
	}
}

func TestBandOf(t *testing.T) {
	tests := []struct {
		confidence *float64
		want       ConfidenceBand
	}{
		{floatPtr(0.95), BandHigh},
		{floatPtr(0.90), BandHigh},
		{floatPtr(0.899), BandMedium},
		{floatPtr(0.75), BandMedium},
		{floatPtr(0.70), BandMedium},
		{floatPtr(0.699), BandLow},
		{floatPtr(0.50), BandLow},
		{floatPtr(0), BandLow},
		{nil, BandNone},
	}
	for _, tt := range tests {
		if got := BandOf(tt.confidence); got != tt.want {
			if tt.confidence != nil {
				t.Errorf("BandOf(%v) = %v, want %v", *tt.confidence, got, tt.want)
			} else {
				t.Errorf("BandOf(nil) = %v, want %v", got, tt.want)
			}
		}
	}
}

func TestStageLabel(t *testing.T) {
	tests := []struct {
		stage string
		want  string
	}{
		{StageAbbreviationConvert, "Обработка аббревиатур"},
		{StageMLClassification, "ML классификация"},
		{StageDeepAnalysis, "Глубокий анализ"},
		{StageQuestionGeneration, "Требуется уточнение"},
		{StageFinalAnalysis, "Финальный анализ"},
		{StageCompleted, "Завершено"},
		// Unknown stages degrade to their raw name, never crash.
		{"quantum_reasoning", "quantum_reasoning"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StageLabel(tt.stage); got != tt.want {
			t.Errorf("StageLabel(%q) = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestInterpretLegacyResult(t *testing.T) {
	t.Run("relevant with matches", func(t *testing.T) {
		r := AnalysisResult{
			TicketID:   "t-1",
			IsRelevant: true,
			Matches: []WorkTypeMatch{
				{WorkTypeID: "wt-1", WorkTypeName: "Ремонт оборудования", Category: "Оборудование", Confidence: 0.88, Reasoning: "принтер"},
				{WorkTypeID: "wt-2", WorkTypeName: "Настройка ПО", Confidence: 0.4},
			},
		}
		outcome := InterpretLegacyResult(r)
		if outcome.Mode != ModeClassified {
			t.Fatalf("Mode = %s, want classified", outcome.Mode)
		}
		if outcome.Class != "Ремонт оборудования" {
			t.Errorf("Class = %q, want top match", outcome.Class)
		}
		if outcome.Confidence == nil || *outcome.Confidence != 0.88 {
			t.Errorf("Confidence = %v, want 0.88", outcome.Confidence)
		}
	})

	t.Run("irrelevant", func(t *testing.T) {
		r := AnalysisResult{
			IsRelevant: false,
			Matches:    []WorkTypeMatch{{WorkTypeName: "Класс"}},
			Metadata:   AnalysisMetadata{RelevanceReason: "не относится к ИТ"},
		}
		outcome := InterpretLegacyResult(r)
		if outcome.Mode != ModeUnclassified {
			t.Fatalf("Mode = %s, want unclassified", outcome.Mode)
		}
		if outcome.Reasoning != "не относится к ИТ" {
			t.Errorf("Reasoning = %q", outcome.Reasoning)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		r := AnalysisResult{IsRelevant: true, Metadata: AnalysisMetadata{Message: "ничего не найдено"}}
		outcome := InterpretLegacyResult(r)
		if outcome.Mode != ModeUnclassified {
			t.Fatalf("Mode = %s, want unclassified", outcome.Mode)
		}
		if outcome.Reasoning != "ничего не найдено" {
			t.Errorf("Reasoning = %q", outcome.Reasoning)
		}
	})
}

func TestInterpretSessionMatchesAgentResult(t *testing.T) {
	r := ClassificationResult{
		Stage:         StageQuestionGeneration,
		Questions:     []string{"Вопрос?"},
		ProcessedText: "текст",
	}
	s := Session{}.ApplyResult(r)
	if got, want := InterpretSession(s).Mode, InterpretAgentResult(r).Mode; got != want {
		t.Fatalf("InterpretSession mode %s != InterpretAgentResult mode %s", got, want)
	}
}
