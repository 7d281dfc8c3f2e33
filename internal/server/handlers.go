// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/consultation"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/internal/respond"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type chatRequest struct {
	Message        string `json:"message"`
	AssistantType  string `json:"assistantType"`
	ConversationID string `json:"conversationId"`
}

type chatMetadata struct {
	Model      string `json:"model"`
	TokensUsed int    `json:"tokensUsed"`
	Timestamp  string `json:"timestamp"`
}

type chatResponse struct {
	Success           bool           `json:"success"`
	ConversationID    string         `json:"conversationId"`
	Response          string         `json:"response"`
	ScientificSources []types.Source `json:"scientificSources"`
	Metadata          chatMetadata   `json:"metadata"`
}

type chatFailure struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Response string `json:"response"`
}

// lenientString decodes a JSON string or number as text.
type lenientString string

func (s *lenientString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = lenientString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = lenientString(n.String())
	return nil
}

type patientData struct {
	Name         lenientString `json:"name"`
	Age          lenientString `json:"age"`
	Gender       lenientString `json:"gender"`
	Observations lenientString `json:"observations"`
}

type consultationRequest struct {
	Transcript    string        `json:"transcript"`
	PatientData   *patientData  `json:"patientData"`
	PatientName   lenientString `json:"patientName"`
	PatientAge    lenientString `json:"patientAge"`
	PatientGender lenientString `json:"patientGender"`
	Observations  lenientString `json:"observations"`
}

// patient prefers the nested patientData object over the flat fields.
func (r consultationRequest) patient() prompt.Patient {
	if p := r.PatientData; p != nil {
		return prompt.Patient{Name: string(p.Name), Age: string(p.Age), Gender: string(p.Gender), Observations: string(p.Observations)}
	}
	return prompt.Patient{
		Name:         string(r.PatientName),
		Age:          string(r.PatientAge),
		Gender:       string(r.PatientGender),
		Observations: string(r.Observations),
	}
}

type consultationMetadata struct {
	Model      string `json:"model"`
	TokensUsed int    `json:"tokensUsed"`
	Timestamp  string `json:"timestamp"`
}

type consultationResponse struct {
	Success    bool                 `json:"success"`
	Report     string               `json:"report"`
	Transcript string               `json:"transcript"`
	Metadata   consultationMetadata `json:"metadata"`
}

type soapPatient struct {
	Name   string `json:"nome"`
	Age    string `json:"idade"`
	Gender string `json:"sexo"`
}

type soapResponse struct {
	Success           bool              `json:"success"`
	SOAP              consultation.SOAP `json:"soap"`
	PatientData       soapPatient       `json:"patientData"`
	Timestamp         string            `json:"timestamp"`
	FullText          string            `json:"fullText"`
	ScientificSources []types.Source    `json:"scientificSources"`
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"message":   "evidence-engine está funcionando",
		"timestamp": s.timestamp(),
		"endpoints": map[string]string{
			"chat":                "POST /api/chat",
			"deleteConversation":  "DELETE /api/chat/:conversationId",
			"analyzeConsultation": "POST /api/analyze-consultation",
			"formatSOAP":          "POST /api/format-soap",
			"metrics":             "GET /metrics",
		},
	})
}

func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	resp, err := s.deps.Chat.Respond(c.Request().Context(), respond.Request{
		Message:        req.Message,
		Profile:        req.AssistantType,
		ConversationID: req.ConversationID,
	})
	if errors.Is(err, respond.ErrEmptyMessage) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Mensagem não pode estar vazia"})
	}
	if err != nil {
		return err
	}

	if !resp.Success {
		msg := "generation failed"
		if resp.Err != nil {
			msg = resp.Err.Error()
		}
		return c.JSON(http.StatusInternalServerError, chatFailure{Error: msg, Response: resp.Text})
	}

	sources := resp.Sources
	if sources == nil {
		sources = []types.Source{}
	}
	return c.JSON(http.StatusOK, chatResponse{
		Success:           true,
		ConversationID:    resp.ConversationID,
		Response:          resp.Text,
		ScientificSources: sources,
		Metadata: chatMetadata{
			Model:      resp.Model,
			TokensUsed: resp.TokensUsed,
			Timestamp:  s.timestamp(),
		},
	})
}

func (s *Server) forget(c echo.Context) error {
	id := c.Param("conversationId")
	found, err := s.deps.Chat.Forget(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Conversa em uso. Tente novamente.").SetInternal(err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, errorBody{Error: "Conversa não encontrada"})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "conversationId": id})
}

func (s *Server) analyzeConsultation(c echo.Context) error {
	if s.deps.Analyzer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "análise de consulta não configurada")
	}
	var req consultationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	report, err := s.deps.Analyzer.Analyze(c.Request().Context(), consultation.Request{
		Transcript: strings.TrimSpace(req.Transcript),
		Patient:    req.patient(),
	})
	if errors.Is(err, consultation.ErrEmptyTranscript) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "É necessário fornecer uma transcrição"})
	}
	if err != nil {
		s.logger.Error("consultation analysis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, consultationResponse{
		Success:    true,
		Report:     report.Text,
		Transcript: report.Transcript,
		Metadata: consultationMetadata{
			Model:      report.Model,
			TokensUsed: report.TokensUsed,
			Timestamp:  s.timestamp(),
		},
	})
}

func (s *Server) formatSOAP(c echo.Context) error {
	if s.deps.Analyzer == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "formatação SOAP não configurada")
	}
	var req consultationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	note, err := s.deps.Analyzer.FormatSOAP(c.Request().Context(), consultation.Request{
		Transcript: strings.TrimSpace(req.Transcript),
		Patient:    req.patient(),
	})
	if errors.Is(err, consultation.ErrEmptyTranscript) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Transcrição não fornecida"})
	}
	if err != nil {
		s.logger.Error("SOAP formatting failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
	}

	sources := note.Sources
	if sources == nil {
		sources = []types.Source{}
	}
	return c.JSON(http.StatusOK, soapResponse{
		Success: true,
		SOAP:    note.SOAP,
		PatientData: soapPatient{
			Name:   note.Patient.Name,
			Age:    note.Patient.Age,
			Gender: note.Patient.Gender,
		},
		Timestamp:         s.timestamp(),
		FullText:          note.FullText,
		ScientificSources: sources,
	})
}
