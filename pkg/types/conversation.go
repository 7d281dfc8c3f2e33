// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Role tags the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. Turns are values; stores copy them in and out.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// UserTurn returns a user turn carrying content.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn returns an assistant turn carrying content.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// SystemTurn returns a system turn carrying content.
func SystemTurn(content string) Turn { return Turn{Role: RoleSystem, Content: content} }
