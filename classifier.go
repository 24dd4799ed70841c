package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ClassifierClient is the typed client for the classification backend.
// Every remote failure (connect error, timeout, non-2xx, undecodable
// body) surfaces as a single *TransportError. The client never retries:
// the backend exposes no idempotency keys, so replaying a partially
// applied call is a caller decision, not a transport one.
type ClassifierClient struct {
	baseURL    string
	source     string
	httpClient *http.Client
}

func NewClassifierClient(cfg Config) *ClassifierClient {
	return &ClassifierClient{
		baseURL:    cfg.BackendURL,
		source:     cfg.Source,
		httpClient: newBackendHTTPClient(cfg.HTTPTimeout()),
	}
}

// TransportError is the opaque failure type for backend calls.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify submits raw ticket text for a new classification round.
func (c *ClassifierClient) Classify(text string) (*ClassificationResult, error) {
	req := TicketRequest{Text: text, Source: c.source}
	var result ClassificationResult
	if err := c.postJSON("classify", "/api/v1/classify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClassifyWithAnswers resumes a clarification round. The text must be the
// backend's processed_text from the round that asked the questions, not
// the user's original input.
func (c *ClassifierClient) ClassifyWithAnswers(processedText string, questions, answers []string) (*ClassificationResult, error) {
	req := TicketWithAnswersRequest{
		Text:      processedText,
		Questions: questions,
		Answers:   answers,
	}
	var result ClassificationResult
	if err := c.postJSON("classify-with-answers", "/api/v1/classify-with-answers", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeText calls the legacy single-shot endpoint. Kept for
// compatibility callers; the result schema is unrelated to the agent
// pipeline's.
func (c *ClassifierClient) AnalyzeText(text string) (*AnalysisResult, error) {
	req := TicketRequest{Text: text, Source: c.source}
	var result AnalysisResult
	if err := c.postJSON("analyze-text", "/api/v1/analyze-text", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetWorkTypes fetches the work-type catalog.
func (c *ClassifierClient) GetWorkTypes() ([]WorkType, error) {
	var types []WorkType
	if err := c.getJSON("work-types", "/api/v1/work-types", &types); err != nil {
		return nil, err
	}
	return types, nil
}

// GetAgents fetches pipeline agent metadata. The endpoint's shape is
// implementation-defined; both a bare array and an {"agents": [...]}
// wrapper are accepted.
func (c *ClassifierClient) GetAgents() ([]AgentInfo, error) {
	var raw json.RawMessage
	if err := c.getJSON("agents", "/api/v1/agents", &raw); err != nil {
		return nil, err
	}

	var agents []AgentInfo
	if err := json.Unmarshal(raw, &agents); err == nil {
		return agents, nil
	}
	var wrapped struct {
		Agents []AgentInfo `json:"agents"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &TransportError{Op: "agents", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return wrapped.Agents, nil
}

// HealthStatus mirrors the backend's health probe response.
type HealthStatus struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Timestamp      string `json:"timestamp"`
	WorkTypesCount int    `json:"work_types_count"`
}

func (c *ClassifierClient) Health() (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON("health", "/api/v1/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *ClassifierClient) postJSON(op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req, out)
}

func (c *ClassifierClient) getJSON(op, path string, out any) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	return c.do(op, req, out)
}

func (c *ClassifierClient) do(op string, req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncateBody(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func truncateBody(body []byte) string {
	const max = 512
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
