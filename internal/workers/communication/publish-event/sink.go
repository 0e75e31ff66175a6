package publishevent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

// AnalyticsSink stores analytics events.
type AnalyticsSink interface {
	Record(ctx context.Context, event Event) error
}

// DocumentIndexer is satisfied by the Elasticsearch client wrapper.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// ElasticsearchSink writes one document per event, keyed by event id.
type ElasticsearchSink struct {
	indexer DocumentIndexer
	index   string
}

func NewElasticsearchSink(indexer DocumentIndexer, index string) *ElasticsearchSink {
	return &ElasticsearchSink{indexer: indexer, index: index}
}

func (s *ElasticsearchSink) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return s.indexer.IndexDocument(ctx, s.index, event.ID, event)
}

// SNSService is the subset of the SNS client used for publishing.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes domain events to a single topic.
type SNSPublisher struct {
	client   SNSService
	topicARN string
}

func NewSNSPublisher(client SNSService, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

// PublishTenantProvisioned returns the SNS message id.
func (p *SNSPublisher) PublishTenantProvisioned(ctx context.Context, msg TenantProvisioned) (string, error) {
	msg.EventType = TopicTenantProvisioned
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", TopicTenantProvisioned, err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(TopicTenantProvisioned)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", TopicTenantProvisioned, err)
	}
	return aws.ToString(out.MessageId), nil
}
