package createfromconversation

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute(t *testing.T) {
	f := newFixture(clubXConversation())
	h, err := NewHandler(nil, Dependencies{
		Conversations: f.conversations,
		Summaries:     f.summaries,
		Cities:        f.cities,
		Provisioner:   f.provisioner,
	}, logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{ConversationID: "conv-1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, out.Tenant.WelcomeEmailSent)

	_, err = h.Execute(context.Background(), &Input{ConversationID: " "})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(nil, Dependencies{}, logger.NewTestLogger(t))
	assert.Error(t, err)

	f := newFixture(clubXConversation())
	deps := Dependencies{
		Conversations: f.conversations,
		Summaries:     f.summaries,
		Cities:        f.cities,
		Provisioner:   f.provisioner,
	}
	_, err = NewHandler(&Config{MaxJobsActive: 1, Timeout: time.Second}, deps, logger.NewTestLogger(t))
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.DefaultCurrency = "EURO"
	_, err = NewHandler(cfg, deps, logger.NewTestLogger(t))
	assert.Error(t, err)
}
