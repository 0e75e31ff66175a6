package createfromconversation

import "center-onboarding/internal/models"

type Input struct {
	ConversationID string `json:"conversationId"`
}

// Output is the job result. Classified failures are reported in Error and
// never fail the job.
type Output struct {
	Success bool        `json:"success"`
	Tenant  *TenantInfo `json:"tenant,omitempty"`
	Error   *Failure    `json:"error,omitempty"`
}

// TenantInfo describes the created (or previously created) tenant and the
// identifiers provisioned for it. AdminPassword is only set on the call that
// generated it.
type TenantInfo struct {
	models.ProvisionedIDs
	TenantName        string `json:"tenantName"`
	City              string `json:"city"`
	CityCorrectedFrom string `json:"cityCorrectedFrom,omitempty"`
	AdminName         string `json:"adminName"`
	AdminEmail        string `json:"adminEmail"`
	AdminLogin        string `json:"adminLogin"`
	AdminPassword     string `json:"adminPassword,omitempty"`
	FacilityCount     int    `json:"facilityCount"`
	AlreadyExisted    bool   `json:"alreadyExisted"`
	WelcomeEmailSent  bool   `json:"welcomeEmailSent"`
}

type Failure struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
