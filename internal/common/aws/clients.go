package aws

import "context"

// Clients holds the AWS service clients enabled in configuration. Disabled
// services are nil.
type Clients struct {
	SES *SESClient
	SNS *SNSClient
}

// NewClients loads the default credential chain once and builds the enabled
// clients. No AWS configuration is loaded when both are disabled.
func NewClients(ctx context.Context, region string, sesEnabled, snsEnabled bool) (*Clients, error) {
	clients := &Clients{}
	if !sesEnabled && !snsEnabled {
		return clients, nil
	}

	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	if sesEnabled {
		clients.SES = NewSESClient(cfg)
	}
	if snsEnabled {
		clients.SNS = NewSNSClient(cfg)
	}
	return clients, nil
}
