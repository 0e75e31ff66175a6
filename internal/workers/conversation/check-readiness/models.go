package checkreadiness

type Input struct {
	ConversationID string `json:"conversationId"`
}

type Output struct {
	Ready          bool     `json:"ready"`
	Missing        []string `json:"missing"`
	Confirmed      bool     `json:"confirmed"`
	ScheduleIssues []string `json:"scheduleIssues,omitempty"`
}
