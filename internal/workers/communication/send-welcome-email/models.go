package sendwelcomeemail

type Input struct {
	ConversationID string `json:"conversationId,omitempty"`
	TenantID       int64  `json:"tenantId,omitempty"`
	TenantName     string `json:"tenantName"`
	AdminName      string `json:"adminName"`
	AdminEmail     string `json:"adminEmail"`
	AdminLogin     string `json:"adminLogin"`
	AdminPassword  string `json:"adminPassword"`
}

// Result is the outcome of a welcome notification. Delivery problems are
// reported here rather than as errors.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Output struct {
	Result
	NotificationID string `json:"notificationId"`
}

// Template keys available to the welcome template.
const (
	KeyTenantName    = "tenantName"
	KeyAdminName     = "adminName"
	KeyAdminLogin    = "adminLogin"
	KeyAdminPassword = "adminPassword"
	KeyLoginURL      = "loginUrl"
)
