package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyDecodesResult(t *testing.T) {
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.Write([]byte(`{"stage":"ml_classification","ticket_class":"Настройка ПО","confidence":0.92,"processed_text":"текст","reasoning":"классифицировано ML моделью"}`))
	}))

	result, err := client.Classify("текст")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Stage != StageMLClassification {
		t.Errorf("Stage = %q", result.Stage)
	}
	if result.Confidence == nil || *result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
}

func TestClassifyNullFieldsStayAbsent(t *testing.T) {
	// The backend serializes absent fields as JSON nulls.
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stage":"question_generation","ticket_class":null,"confidence":null,"questions":["Вопрос?"],"processed_text":"текст","reasoning":null}`))
	}))

	result, err := client.Classify("текст")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Confidence != nil {
		t.Errorf("Confidence = %v, want nil for null", result.Confidence)
	}
	if result.TicketClass != "" {
		t.Errorf("TicketClass = %q, want empty for null", result.TicketClass)
	}
}

func TestTransportErrorOnNon2xx(t *testing.T) {
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Ошибка при анализе заявки"}`, http.StatusInternalServerError)
	}))

	_, err := client.Classify("текст")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T(%v), want *TransportError", err, err)
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", te.StatusCode)
	}
	if te.Op != "classify" {
		t.Errorf("Op = %q", te.Op)
	}
}

func TestTransportErrorOnMalformedBody(t *testing.T) {
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	}))

	_, err := client.Classify("текст")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T(%v), want *TransportError", err, err)
	}
}

func TestTransportErrorOnConnectFailure(t *testing.T) {
	client := NewClassifierClient(Config{
		BackendURL:         "http://127.0.0.1:1", // nothing listens here
		Source:             "test",
		HTTPTimeoutSeconds: 5,
	})

	_, err := client.Classify("текст")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T(%v), want *TransportError", err, err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 when no response was received", te.StatusCode)
	}
}

func TestClassifyWithAnswersRequestShape(t *testing.T) {
	var got TicketWithAnswersRequest
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/classify-with-answers" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding: %v", err)
		}
		w.Write([]byte(`{"stage":"completed","ticket_class":"Класс","confidence":0.9}`))
	}))

	_, err := client.ClassifyWithAnswers("обработанный текст", []string{"q1", "q2"}, []string{"a1", "a2"})
	if err != nil {
		t.Fatalf("ClassifyWithAnswers: %v", err)
	}
	if got.Text != "обработанный текст" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Questions) != 2 || len(got.Answers) != 2 {
		t.Errorf("questions/answers = %v/%v", got.Questions, got.Answers)
	}
}

func TestGetAgentsAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"name":"abbreviation_convert","description":"Исправление аббревиатур"},{"name":"ticket_analyzer","description":"ML классификация"}]`},
		{"wrapped object", `{"agents":[{"name":"abbreviation_convert","description":"Исправление аббревиатур"},{"name":"ticket_analyzer","description":"ML классификация"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/agents" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			agents, err := client.GetAgents()
			if err != nil {
				t.Fatalf("GetAgents: %v", err)
			}
			if len(agents) != 2 || agents[0].Name != "abbreviation_convert" {
				t.Errorf("agents = %+v", agents)
			}
		})
	}
}

func TestGetWorkTypes(t *testing.T) {
	client := testClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/work-types" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"wt-1","name":"Ремонт оборудования","category":"Оборудование","description":"","keywords":["принтер"],"examples":[]}]`))
	}))

	types, err := client.GetWorkTypes()
	if err != nil {
		t.Fatalf("GetWorkTypes: %v", err)
	}
	if len(types) != 1 || types[0].ID != "wt-1" {
		t.Fatalf("types = %+v", types)
	}
	if len(types[0].Keywords) != 1 || types[0].Keywords[0] != "принтер" {
		t.Errorf("keywords = %v", types[0].Keywords)
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := truncateBody([]byte(long))
	if len(got) != 512+3 {
		t.Errorf("len = %d, want 515", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated body must end with ellipsis")
	}
	if truncateBody([]byte("short")) != "short" {
		t.Errorf("short bodies must pass through")
	}
}
