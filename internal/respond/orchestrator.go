// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package respond answers chat messages. It combines retrieved evidence with
// the recent conversation history, asks the generative backend for an
// answer, and records the exchange.
package respond

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/conversation"
	"github.com/pdiddy/evidence-engine/internal/evidence"
	"github.com/pdiddy/evidence-engine/internal/generate"
	"github.com/pdiddy/evidence-engine/internal/prompt"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// FallbackMessage is the answer returned when generation fails.
const FallbackMessage = "Desculpe, ocorreu um erro ao processar sua pergunta. Por favor, tente novamente."

// ErrEmptyMessage rejects blank input before any external call.
var ErrEmptyMessage = errors.New("message must not be empty")

// Defaults applied when Options leaves a field unset.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
	DefaultTimeout     = 60 * time.Second
)

// EvidenceSource retrieves evidence for a query. *evidence.Assembler
// implements it.
type EvidenceSource interface {
	Assemble(ctx context.Context, query string, maxResults int) evidence.Result
}

// Recorder persists exchanges. *ledger.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, ex types.Exchange) (int64, error)
}

// Observer counts exchanges. *telemetry.Metrics implements it.
type Observer interface {
	Exchange(kind, model string, success bool, tokens int, elapsed time.Duration)
}

// Options tunes an Orchestrator.
type Options struct {
	MaxResults    int
	HistoryWindow int
	// Temperature is the sampling temperature; nil means DefaultTemperature.
	Temperature *float64
	MaxTokens   int
	// Timeout bounds one Respond call. Negative disables it.
	Timeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Recorder, Observer and
// Logger may be nil.
type Deps struct {
	Evidence EvidenceSource
	Backend  generate.Backend
	Store    *conversation.Store
	Recorder Recorder
	Observer Observer
	Logger   *zap.Logger
}

// Request is one chat message.
type Request struct {
	Message        string
	Profile        string
	ConversationID string
}

// Response is the answer to a Request. When Success is false Text holds
// FallbackMessage and Err the cause, which is for logs only.
type Response struct {
	Success        bool
	Text           string
	Sources        []types.Source
	ConversationID string
	Profile        prompt.Profile
	Model          string
	TokensUsed     int
	Err            error
}

// Orchestrator runs the chat pipeline.
type Orchestrator struct {
	deps        Deps
	opts        Options
	temperature float64
	now         func() time.Time
}

// New returns an Orchestrator with defaults filled in.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = evidence.DefaultMaxResults
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = conversation.DefaultHistoryWindow
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Orchestrator{deps: deps, opts: opts, temperature: temperature, now: time.Now}
}

// Respond answers req. The only error returned is ErrEmptyMessage; a
// generation failure, or a timeout while waiting behind another call on the
// same conversation, yields a Response with Success false and leaves the
// conversation untouched.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, ErrEmptyMessage
	}
	start := o.now()
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	id := req.ConversationID
	if id == "" {
		id = conversation.NewID()
	}
	profile := prompt.ParseProfile(req.Profile)
	log := o.deps.Logger.With(zap.String("conversation_id", id), zap.String("profile", profile.String()))

	resp := Response{ConversationID: id, Profile: profile}

	unlock, err := o.deps.Store.Lock(ctx, id)
	if err != nil {
		resp.Text = FallbackMessage
		resp.Err = fmt.Errorf("waiting for conversation: %w", err)
		log.Warn("conversation busy", zap.Error(err))
		o.record(ctx, log, resp, nil, start)
		return resp, nil
	}
	defer unlock()

	history := o.deps.Store.RecentWindow(id, o.opts.HistoryWindow)
	found := o.deps.Evidence.Assemble(ctx, req.Message, o.opts.MaxResults)

	completion, err := o.generate(ctx, profile, history, found.Evidence, req.Message)
	if err != nil {
		resp.Text = FallbackMessage
		resp.Err = err
		log.Error("generation failed", zap.Error(err))
	} else {
		o.deps.Store.Append(id, types.UserTurn(req.Message), types.AssistantTurn(completion.Text))
		resp.Success = true
		resp.Text = completion.Text
		resp.Sources = found.Evidence.Sources()
		resp.Model = completion.Model
		resp.TokensUsed = completion.TokensUsed
		log.Info("response generated",
			zap.String("model", resp.Model),
			zap.Int("tokens", resp.TokensUsed),
			zap.Int("sources", len(resp.Sources)))
	}

	o.record(ctx, log, resp, found.Evidence.IDs(), start)
	return resp, nil
}

// Forget drops the history of id once any in-flight Respond on it has
// finished. It reports whether the id was present.
func (o *Orchestrator) Forget(ctx context.Context, id string) (bool, error) {
	unlock, err := o.deps.Store.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()
	return o.deps.Store.Delete(id), nil
}

func (o *Orchestrator) generate(ctx context.Context, profile prompt.Profile, history []types.Turn, set types.EvidenceSet, message string) (generate.Completion, error) {
	user, err := prompt.UserTurn(evidence.RenderContext(set), message)
	if err != nil {
		return generate.Completion{}, err
	}
	turns := make([]types.Turn, 0, len(history)+2)
	turns = append(turns, types.SystemTurn(profile.Instruction()))
	turns = append(turns, history...)
	turns = append(turns, types.UserTurn(user))

	return o.deps.Backend.Generate(ctx, generate.Request{
		Turns:       turns,
		Temperature: o.temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
}

func (o *Orchestrator) record(ctx context.Context, log *zap.Logger, resp Response, pmids []string, start time.Time) {
	if o.deps.Observer != nil {
		o.deps.Observer.Exchange(string(types.ExchangeChat), resp.Model, resp.Success, resp.TokensUsed, o.now().Sub(start))
	}
	if o.deps.Recorder == nil {
		return
	}
	ex := types.Exchange{
		Kind:           types.ExchangeChat,
		ConversationID: resp.ConversationID,
		Profile:        resp.Profile.String(),
		Model:          resp.Model,
		TokensUsed:     resp.TokensUsed,
		Success:        resp.Success,
		PMIDs:          pmids,
		CreatedAt:      start,
	}
	if resp.Err != nil {
		ex.Error = resp.Err.Error()
	}
	if _, err := o.deps.Recorder.Record(context.WithoutCancel(ctx), ex); err != nil {
		log.Warn("recording exchange", zap.Error(err))
	}
}
