package sendwelcomeemail

import (
	"context"
	"fmt"
	"regexp"

	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/validation"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES client used to deliver mail.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

const (
	welcomeSubject = "Welcome to {{tenantName}}"
	welcomeBody    = `Hello {{adminName}},

Your center {{tenantName}} is ready.

Login: {{adminLogin}}
Password: {{adminPassword}}

Sign in at {{loginUrl}} and change your password after the first login.`
)

// Notifier renders and sends the welcome email through SES.
type Notifier struct {
	ses      SESService
	from     string
	replyTo  string
	loginURL string
	logger   logger.Logger
}

func NewNotifier(sesClient SESService, cfg *Config, log logger.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Notifier{
		ses:      sesClient,
		from:     cfg.FromEmail,
		replyTo:  cfg.ReplyTo,
		loginURL: cfg.LoginURL,
		logger:   log,
	}
}

// Send delivers the welcome email to adminEmail. It never returns an error;
// failures are reported in the Result.
func (n *Notifier) Send(ctx context.Context, adminEmail string, data map[string]interface{}) Result {
	if n == nil || n.ses == nil {
		return Result{Error: "email delivery is not configured"}
	}
	if !validation.ValidateEmail(adminEmail) {
		return Result{Error: fmt.Sprintf("invalid recipient %q", adminEmail)}
	}

	merged := map[string]interface{}{KeyLoginURL: n.loginURL}
	for k, v := range data {
		merged[k] = v
	}
	subject := renderTemplate(welcomeSubject, merged)
	body := renderTemplate(welcomeBody, merged)

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{adminEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(n.from),
	}
	if n.replyTo != "" {
		input.ReplyToAddresses = []string{n.replyTo}
	}

	out, err := n.ses.SendEmail(ctx, input)
	if err != nil {
		n.logger.Warn("welcome email failed", map[string]interface{}{
			"to":    adminEmail,
			"error": err.Error(),
		})
		return Result{Error: err.Error()}
	}

	result := Result{Success: true}
	if out != nil && out.MessageId != nil {
		result.MessageID = *out.MessageId
	}
	n.logger.Info("welcome email sent", map[string]interface{}{
		"to":        adminEmail,
		"messageId": result.MessageID,
	})
	return result
}

var placeholder = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// renderTemplate substitutes {{key}} placeholders in one pass over tmpl, so
// substituted values are never expanded again. Unknown keys render empty.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		v, ok := data[match[2:len(match)-2]]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}
