package main

// Stage values reported by the agent pipeline. The set is open on the
// backend side: anything outside this list is kept verbatim and rendered
// as an opaque label.
const (
	StageAbbreviationConvert = "abbreviation_convert"
	StageMLClassification    = "ml_classification"
	StageDeepAnalysis        = "deep_analysis"
	StageQuestionGeneration  = "question_generation"
	StageFinalAnalysis       = "final_analysis"
	StageCompleted           = "completed"
)

// NoClassSentinel is the backend's "classification attempted, nothing
// fits" marker. It is a distinct outcome, not a real class.
const NoClassSentinel = "нет классов"

var stageLabels = map[string]string{
	StageAbbreviationConvert: "Обработка аббревиатур",
	StageMLClassification:    "ML классификация",
	StageDeepAnalysis:        "Глубокий анализ",
	StageQuestionGeneration:  "Требуется уточнение",
	StageFinalAnalysis:       "Финальный анализ",
	StageCompleted:           "Завершено",
}

// StageLabel returns the human label for a pipeline stage. Unknown stages
// come back unchanged so new backend stages degrade to their raw name.
func StageLabel(stage string) string {
	if label, ok := stageLabels[stage]; ok {
		return label
	}
	return stage
}

// ClassificationResult is the agent-pipeline response shape, shared by
// /classify and /classify-with-answers. Confidence is a pointer because
// "not yet scored" and 0.0 are different things.
type ClassificationResult struct {
	Stage         string   `json:"stage"`
	TicketClass   string   `json:"ticket_class,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Questions     []string `json:"questions,omitempty"`
	ProcessedText string   `json:"processed_text,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
}

type TicketRequest struct {
	Text       string         `json:"text"`
	Source     string         `json:"source,omitempty"`
	ExternalID string         `json:"external_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type TicketWithAnswersRequest struct {
	Text      string   `json:"text"`
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

// AnalysisResult is the legacy single-shot schema, kept for callers of
// /analyze-text. It never carries questions; one call, one verdict.
type AnalysisResult struct {
	TicketID         string           `json:"ticket_id"`
	IsRelevant       bool             `json:"is_relevant"`
	Matches          []WorkTypeMatch  `json:"matches"`
	AgentSteps       []AgentStep      `json:"agent_steps"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	Metadata         AnalysisMetadata `json:"metadata"`
}

type WorkTypeMatch struct {
	WorkTypeID   string  `json:"work_type_id"`
	WorkTypeName string  `json:"work_type_name"`
	Category     string  `json:"category"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

type AgentStep struct {
	AgentName string `json:"agent_name"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

type AnalysisMetadata struct {
	Validation      *AnalysisValidation `json:"validation,omitempty"`
	Routing         *AnalysisRouting    `json:"routing,omitempty"`
	RelevanceReason string              `json:"relevance_reason,omitempty"`
	Message         string              `json:"message,omitempty"`
}

type AnalysisValidation struct {
	IsComplete         bool     `json:"is_complete"`
	MissingInfo        []string `json:"missing_info"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

type AnalysisRouting struct {
	Priority              string `json:"priority"`
	RecommendedDepartment string `json:"recommended_department"`
	EstimatedTime         string `json:"estimated_time"`
	Notes                 string `json:"notes"`
}

// WorkType is one entry of the backend's work-type catalog
// (GET /api/v1/work-types).
type WorkType struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Examples    []string `json:"examples"`
}

// AgentInfo describes one pipeline agent (GET /api/v1/agents). The
// endpoint's shape is implementation-defined; unknown fields are ignored.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
