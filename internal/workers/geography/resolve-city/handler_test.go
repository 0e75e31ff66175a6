package resolvecity

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockCityResolver struct {
	ResolveFunc func(ctx context.Context, req Request) (*models.ResolvedCity, error)
}

func (m *MockCityResolver) Resolve(ctx context.Context, req Request) (*models.ResolvedCity, error) {
	return m.ResolveFunc(ctx, req)
}

func TestHandler_Execute(t *testing.T) {
	resolver := &MockCityResolver{
		ResolveFunc: func(ctx context.Context, req Request) (*models.ResolvedCity, error) {
			assert.Equal(t, "Madrd", req.City)
			assert.Equal(t, "ES", req.CountryCode)
			return &models.ResolvedCity{CityID: 1, CanonicalName: "Madrid", ProvinceID: 10, CorrectedFrom: "Madrd"}, nil
		},
	}
	h, err := NewHandler(nil, resolver, logger.NewTestLogger(t))
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), &Input{City: "Madrd", CountryCode: "ES"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.CityID)
	assert.Equal(t, "Madrd", out.CorrectedFrom)
}

func TestHandler_Execute_Errors(t *testing.T) {
	resolver := &MockCityResolver{
		ResolveFunc: func(ctx context.Context, req Request) (*models.ResolvedCity, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h, err := NewHandler(nil, resolver, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)

	_, err = h.Execute(context.Background(), &Input{City: "Madrid"})
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeTimeout, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(&Config{MaxJobsActive: 1}, &MockCityResolver{}, logger.NewTestLogger(t))
	assert.Error(t, err)

	_, err = NewHandler(&Config{MaxJobsActive: 1, Timeout: time.Second}, nil, logger.NewTestLogger(t))
	assert.Error(t, err)
}
