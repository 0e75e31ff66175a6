package publishevent

import "time"

// Event types written to the analytics index.
const (
	EventTenantCreated        = "tenant_created"
	EventTenantCreationFailed = "tenant_creation_failed"
	EventWelcomeEmailFailed   = "welcome_email_failed"
	EventHumanHelpRequested   = "human_help_requested"
)

// TopicTenantProvisioned is the domain event published after a successful creation.
const TopicTenantProvisioned = "tenant.provisioned"

type Event struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	ConversationID string                 `json:"conversationId"`
	TenantID       int64                  `json:"tenantId,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

// TenantProvisioned is the SNS message body for TopicTenantProvisioned.
type TenantProvisioned struct {
	EventType      string    `json:"eventType"`
	ConversationID string    `json:"conversationId"`
	TenantID       int64     `json:"tenantId"`
	TenantName     string    `json:"tenantName"`
	City           string    `json:"city"`
	AdminEmail     string    `json:"adminEmail"`
	FacilityCount  int       `json:"facilityCount"`
	ProvisionedAt  time.Time `json:"provisionedAt"`
}
