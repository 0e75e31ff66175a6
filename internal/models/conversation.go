package models

import "time"

// ConversationStatus is the lifecycle state of an onboarding conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
	ConversationAbandoned ConversationStatus = "abandoned"
)

// Conversation is one onboarding chat and the record collected from it.
type Conversation struct {
	ID        string             `json:"id" db:"id"`
	Status    ConversationStatus `json:"status" db:"status"`
	Record    StructuredRecord   `json:"collectedData" db:"collected_data"`
	Version   int64              `json:"version" db:"version"`
	CreatedAt time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" db:"updated_at"`
}

// IsOpen reports whether the conversation still accepts tool calls.
func (c *Conversation) IsOpen() bool {
	return c.Status == ConversationActive
}

// TenantSummary is the local record of a provisioned tenant, one per conversation.
type TenantSummary struct {
	ID               string         `json:"id" db:"id"`
	ConversationID   string         `json:"conversationId" db:"conversation_id"`
	ExternalTenantID int64          `json:"tenantId" db:"external_tenant_id"`
	TenantName       string         `json:"tenantName" db:"tenant_name"`
	City             string         `json:"city" db:"city"`
	AdminName        string         `json:"adminName" db:"admin_name"`
	AdminEmail       string         `json:"adminEmail" db:"admin_email"`
	AdminLogin       string         `json:"adminLogin" db:"admin_login"`
	FacilityCount    int            `json:"facilityCount" db:"facility_count"`
	Identifiers      ProvisionedIDs `json:"identifiers" db:"provisioned_ids"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
}
