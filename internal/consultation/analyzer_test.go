// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consultation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

type fakeBackend struct {
	got   []generate.Request
	reply generate.Completion
	err   error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(_ context.Context, req generate.Request) (generate.Completion, error) {
	f.got = append(f.got, req)
	return f.reply, f.err
}

type memRecorder struct{ entries []types.Exchange }

func (r *memRecorder) Record(_ context.Context, ex types.Exchange) (int64, error) {
	r.entries = append(r.entries, ex)
	return int64(len(r.entries)), nil
}

func TestAnalyze(t *testing.T) {
	backend := &fakeBackend{reply: generate.Completion{Text: "1. IDENTIFICAÇÃO...", Model: "gpt-4", TokensUsed: 800}}
	rec := &memRecorder{}
	a := &Analyzer{Backend: backend, Recorder: rec}

	report, err := a.Analyze(context.Background(), Request{
		Transcript: "Paciente com tosse há 3 dias.",
		Patient:    prompt.Patient{Name: "João", Gender: "M"},
	})
	require.NoError(t, err)

	assert.Equal(t, Report{Text: "1. IDENTIFICAÇÃO...", Transcript: "Paciente com tosse há 3 dias.", Model: "gpt-4", TokensUsed: 800}, report)

	require.Len(t, backend.got, 1)
	req := backend.got[0]
	assert.Equal(t, Temperature, req.Temperature)
	assert.Equal(t, MaxTokens, req.MaxTokens)
	require.Len(t, req.Turns, 2)
	assert.Equal(t, types.SystemTurn(prompt.ConsultationSystem), req.Turns[0])
	assert.Contains(t, req.Turns[1].Content, "Nome: João")
	assert.Contains(t, req.Turns[1].Content, "Sexo: M")
	assert.Contains(t, req.Turns[1].Content, "Paciente com tosse há 3 dias.")

	require.Len(t, rec.entries, 1)
	assert.Equal(t, types.ExchangeConsultation, rec.entries[0].Kind)
	assert.True(t, rec.entries[0].Success)
}

func TestAnalyzeEmptyTranscript(t *testing.T) {
	backend := &fakeBackend{}
	a := &Analyzer{Backend: backend}
	_, err := a.Analyze(context.Background(), Request{Transcript: "  \n"})
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Empty(t, backend.got)
}

func TestAnalyzeBackendFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("HTTP 500")}
	rec := &memRecorder{}
	a := &Analyzer{Backend: backend, Recorder: rec}

	_, err := a.Analyze(context.Background(), Request{Transcript: "texto"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	require.Len(t, rec.entries, 1)
	assert.False(t, rec.entries[0].Success)
	assert.Equal(t, "HTTP 500", rec.entries[0].Error)
}
