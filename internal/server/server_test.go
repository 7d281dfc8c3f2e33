// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/consultation"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/internal/respond"
	"github.com/pdiddy/evidence-engine/internal/telemetry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

type fakeChat struct {
	got       respond.Request
	resp      respond.Response
	err       error
	known     map[string]bool
	forgotID  string
	forgetErr error
}

func (f *fakeChat) Respond(_ context.Context, req respond.Request) (respond.Response, error) {
	f.got = req
	if strings.TrimSpace(req.Message) == "" {
		return respond.Response{}, respond.ErrEmptyMessage
	}
	return f.resp, f.err
}

func (f *fakeChat) Forget(_ context.Context, id string) (bool, error) {
	f.forgotID = id
	return f.known[id], f.forgetErr
}

type fakeAnalyzer struct {
	got    consultation.Request
	report consultation.Report
	note   consultation.Note
	err    error
}

func (f *fakeAnalyzer) FormatSOAP(_ context.Context, req consultation.Request) (consultation.Note, error) {
	f.got = req
	if req.Transcript == "" {
		return consultation.Note{}, consultation.ErrEmptyTranscript
	}
	return f.note, f.err
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req consultation.Request) (consultation.Report, error) {
	f.got = req
	if req.Transcript == "" {
		return consultation.Report{}, consultation.ErrEmptyTranscript
	}
	return f.report, f.err
}

func testServer(chat *fakeChat, an *fakeAnalyzer) *Server {
	deps := Deps{Chat: chat, Metrics: telemetry.New().Handler()}
	if an != nil {
		deps.Analyzer = an
	}
	s := New(types.ServerConfig{}, deps)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	rec, body := do(t, testServer(&fakeChat{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Equal(t, "POST /api/chat", endpoints["chat"])
}

func TestChatSuccess(t *testing.T) {
	chat := &fakeChat{resp: respond.Response{
		Success:        true,
		Text:           "## Resposta",
		ConversationID: "conv_1",
		Model:          "gpt-4",
		TokensUsed:     99,
		Sources:        []types.Source{{Title: "T", PMID: "10", Year: "2022", URL: types.PubMedURL("10")}},
	}}
	rec, body := do(t, testServer(chat, nil), http.MethodPost, "/api/chat",
		`{"message":"Dose?","assistantType":"pediatria","conversationId":"conv_1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, respond.Request{Message: "Dose?", Profile: "pediatria", ConversationID: "conv_1"}, chat.got)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "conv_1", body["conversationId"])
	assert.Equal(t, "## Resposta", body["response"])

	sources := body["scientificSources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "10", sources[0].(map[string]any)["pmid"])

	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "gpt-4", meta["model"])
	assert.Equal(t, 99.0, meta["tokensUsed"])
	assert.Equal(t, "2026-05-01T10:00:00Z", meta["timestamp"])
}

func TestChatEmptySourcesIsArray(t *testing.T) {
	chat := &fakeChat{resp: respond.Response{Success: true, Text: "ok", ConversationID: "c"}}
	rec, _ := do(t, testServer(chat, nil), http.MethodPost, "/api/chat", `{"message":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scientificSources":[]`)
}

func TestChatEmptyMessage(t *testing.T) {
	rec, body := do(t, testServer(&fakeChat{}, nil), http.MethodPost, "/api/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Mensagem não pode estar vazia", body["error"])
}

func TestChatGenerationFailure(t *testing.T) {
	chat := &fakeChat{resp: respond.Response{
		Success:        false,
		Text:           respond.FallbackMessage,
		ConversationID: "conv_1",
		Err:            errors.New("HTTP 503"),
	}}
	rec, body := do(t, testServer(chat, nil), http.MethodPost, "/api/chat", `{"message":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "HTTP 503", body["error"])
	assert.Equal(t, respond.FallbackMessage, body["response"])
}

func TestChatMalformedJSON(t *testing.T) {
	rec, body := do(t, testServer(&fakeChat{}, nil), http.MethodPost, "/api/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestForget(t *testing.T) {
	chat := &fakeChat{known: map[string]bool{"conv_1": true}}
	s := testServer(chat, nil)

	rec, body := do(t, s, http.MethodDelete, "/api/chat/conv_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "conv_1", body["conversationId"])
	assert.Equal(t, "conv_1", chat.forgotID)

	rec, body = do(t, s, http.MethodDelete, "/api/chat/conv_404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestForgetBusyConversation(t *testing.T) {
	chat := &fakeChat{known: map[string]bool{"conv_1": true}, forgetErr: context.DeadlineExceeded}
	rec, body := do(t, testServer(chat, nil), http.MethodDelete, "/api/chat/conv_1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestAnalyzeConsultation(t *testing.T) {
	an := &fakeAnalyzer{report: consultation.Report{Text: "RELATÓRIO", Transcript: "texto", Model: "gpt-4", TokensUsed: 700}}
	rec, body := do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/analyze-consultation",
		`{"transcript":" texto ","patientName":"Ana","patientAge":34,"patientGender":"F"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "texto", an.got.Transcript)
	assert.Equal(t, prompt.Patient{Name: "Ana", Age: "34", Gender: "F"}, an.got.Patient)
	assert.Equal(t, "RELATÓRIO", body["report"])
	assert.Equal(t, "texto", body["transcript"])
	assert.Equal(t, 700.0, body["metadata"].(map[string]any)["tokensUsed"])
}

func TestAnalyzeConsultationPatientData(t *testing.T) {
	an := &fakeAnalyzer{report: consultation.Report{Text: "r"}}
	rec, _ := do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/analyze-consultation",
		`{"transcript":"t","patientData":{"name":"Bia","age":"7"},"patientName":"ignored"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prompt.Patient{Name: "Bia", Age: "7"}, an.got.Patient)
}

func TestAnalyzeConsultationErrors(t *testing.T) {
	an := &fakeAnalyzer{}
	rec, body := do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/analyze-consultation", `{"transcript":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	an.err = errors.New("generating report: HTTP 500")
	rec, body = do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/analyze-consultation", `{"transcript":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "HTTP 500")
}

func TestAnalyzeConsultationNotConfigured(t *testing.T) {
	s := New(types.ServerConfig{}, Deps{Chat: &fakeChat{}})
	rec, body := do(t, s, http.MethodPost, "/api/analyze-consultation", `{"transcript":"x"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestFormatSOAP(t *testing.T) {
	an := &fakeAnalyzer{note: consultation.Note{
		SOAP:     consultation.SOAP{Subjective: "Cefaleia", Objective: "PA 130/85", Assessment: "Tensional", Plan: "Dipirona"},
		Patient:  prompt.Patient{Name: "Ana", Age: "34", Gender: prompt.NotInformed},
		FullText: "S: Cefaleia",
		Sources:  []types.Source{{Title: "T", PMID: "10", URL: types.PubMedURL("10")}},
	}}
	rec, body := do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/format-soap",
		`{"transcript":" dor de cabeça ","patientData":{"name":"Ana","age":34}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dor de cabeça", an.got.Transcript)
	assert.Equal(t, prompt.Patient{Name: "Ana", Age: "34"}, an.got.Patient)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{
		"subjetivo": "Cefaleia",
		"objetivo":  "PA 130/85",
		"avaliacao": "Tensional",
		"plano":     "Dipirona",
	}, body["soap"])
	assert.Equal(t, map[string]any{"nome": "Ana", "idade": "34", "sexo": prompt.NotInformed}, body["patientData"])
	assert.Equal(t, "S: Cefaleia", body["fullText"])
	assert.Equal(t, "2026-05-01T10:00:00Z", body["timestamp"])
	assert.Len(t, body["scientificSources"], 1)
}

func TestFormatSOAPErrors(t *testing.T) {
	an := &fakeAnalyzer{}
	rec, body := do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/format-soap", `{"transcript":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Transcrição não fornecida", body["error"])

	an.err = errors.New("generating SOAP note: HTTP 500")
	rec, body = do(t, testServer(&fakeChat{}, an), http.MethodPost, "/api/format-soap", `{"transcript":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "HTTP 500")

	rec, _ = do(t, New(types.ServerConfig{}, Deps{Chat: &fakeChat{}}), http.MethodPost, "/api/format-soap", `{"transcript":"x"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimit(t *testing.T) {
	chat := &fakeChat{resp: respond.Response{Success: true, Text: "ok", ConversationID: "c"}}
	s := New(types.ServerConfig{RateLimit: 3}, Deps{Chat: chat})

	for i := 0; i < 3; i++ {
		rec, _ := do(t, s, http.MethodPost, "/api/chat", `{"message":"q"}`)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec, body := do(t, s, http.MethodPost, "/api/chat", `{"message":"q"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Muitas requisições. Tente novamente em breve.", body["error"])

	rec, _ = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	chat := &fakeChat{resp: respond.Response{Success: true, Text: "ok", ConversationID: "c"}}
	s := New(types.ServerConfig{}, Deps{Chat: chat})
	for i := 0; i < 20; i++ {
		rec, _ := do(t, s, http.MethodPost, "/api/chat", `{"message":"q"}`)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestMetricsRoute(t *testing.T) {
	rec, _ := do(t, testServer(&fakeChat{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	rec, body := do(t, testServer(&fakeChat{}, nil), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}
