package publishevent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"center-onboarding/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockIndexer struct {
	IndexDocumentFunc func(ctx context.Context, index, id string, doc interface{}) error
}

func (m *MockIndexer) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	return m.IndexDocumentFunc(ctx, index, id, doc)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestElasticsearchSink_Record(t *testing.T) {
	var gotIndex, gotID string
	var gotDoc Event
	sink := NewElasticsearchSink(&MockIndexer{
		IndexDocumentFunc: func(_ context.Context, index, id string, doc interface{}) error {
			gotIndex, gotID = index, id
			gotDoc = doc.(Event)
			return nil
		},
	}, "onboarding-events")

	err := sink.Record(context.Background(), Event{Type: EventTenantCreated, ConversationID: "conv-1", TenantID: 7})
	require.NoError(t, err)
	assert.Equal(t, "onboarding-events", gotIndex)
	assert.NotEmpty(t, gotID)
	assert.Equal(t, gotID, gotDoc.ID)
	assert.False(t, gotDoc.OccurredAt.IsZero())
}

func TestEmitter_SwallowsFailures(t *testing.T) {
	calls := 0
	sink := NewElasticsearchSink(&MockIndexer{
		IndexDocumentFunc: func(context.Context, string, string, interface{}) error {
			calls++
			return errors.New("cluster red")
		},
	}, "onboarding-events")
	publisher := NewSNSPublisher(&MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			calls++
			return nil, errors.New("throttled")
		},
	}, "arn:aws:sns:eu-west-1:123:onboarding")

	e := NewEmitter(sink, publisher, logger.NewTestLogger(t), 0)
	e.Emit(context.Background(), EventHumanHelpRequested, "conv-1", 0, map[string]interface{}{"reason": "pricing"})
	e.TenantProvisioned(context.Background(), TenantProvisioned{ConversationID: "conv-1", TenantID: 7})
	assert.Equal(t, 2, calls)
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	e.Emit(context.Background(), EventTenantCreated, "conv-1", 1, nil)
	e.TenantProvisioned(context.Background(), TenantProvisioned{})

	NewEmitter(nil, nil, logger.NewNoOpLogger(), 0).Emit(context.Background(), EventTenantCreated, "conv-1", 1, nil)
}

func TestSNSPublisher_Message(t *testing.T) {
	var input *sns.PublishInput
	publisher := NewSNSPublisher(&MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			input = params
			return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
		},
	}, "arn:topic")

	id, err := publisher.PublishTenantProvisioned(context.Background(), TenantProvisioned{
		ConversationID: "conv-1",
		TenantID:       42,
		TenantName:     "Club X",
		FacilityCount:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "arn:topic", aws.ToString(input.TopicArn))

	var body TenantProvisioned
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.Message)), &body))
	assert.Equal(t, TopicTenantProvisioned, body.EventType)
	assert.Equal(t, int64(42), body.TenantID)
}
