// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ExchangeKind tags the kind of call recorded in the ledger.
type ExchangeKind string

const (
	ExchangeChat         ExchangeKind = "chat"
	ExchangeConsultation ExchangeKind = "consultation"
	ExchangeSOAP         ExchangeKind = "soap"
)

// Exchange is one recorded call to the generative backend.
type Exchange struct {
	ID             int64        `json:"id" yaml:"id"`
	Kind           ExchangeKind `json:"kind" yaml:"kind"`
	ConversationID string       `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	Profile        string       `json:"profile,omitempty" yaml:"profile,omitempty"`
	Model          string       `json:"model,omitempty" yaml:"model,omitempty"`
	TokensUsed     int          `json:"tokens_used" yaml:"tokens_used"`
	Success        bool         `json:"success" yaml:"success"`
	PMIDs          []string     `json:"pmids,omitempty" yaml:"pmids,omitempty"`
	Error          string       `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at" yaml:"created_at"`
}

// ModelUsage totals ledger entries for one model.
type ModelUsage struct {
	Model      string `json:"model" yaml:"model"`
	Exchanges  int    `json:"exchanges" yaml:"exchanges"`
	Failures   int    `json:"failures" yaml:"failures"`
	TokensUsed int    `json:"tokens_used" yaml:"tokens_used"`
}
