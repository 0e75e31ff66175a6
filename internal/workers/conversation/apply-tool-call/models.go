package applytoolcall

import "encoding/json"

type Input struct {
	ConversationID string          `json:"conversationId"`
	ToolName       string          `json:"toolName"`
	Arguments      json.RawMessage `json:"arguments"`
}

type Output struct {
	Kind            string   `json:"toolKind"`
	Applied         bool     `json:"applied"`
	Changed         []string `json:"changedFields,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Ready           bool     `json:"ready"`
	Missing         []string `json:"missing"`
	Confirmed       bool     `json:"confirmed"`
	Escalated       bool     `json:"escalated"`
	CreateRequested bool     `json:"createRequested"`
	Status          string   `json:"conversationStatus"`
}
