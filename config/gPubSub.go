package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubMessage is the envelope published for reconciliation events. The
// outbox dispatcher serializes rows into this shape before publishing.
type PubSubMessage struct {
	ID                  int       `json:"id"`
	BusinessId          string    `json:"business_id"`
	TransactionDateTime time.Time `json:"transaction_date_time"`
	ReferenceId         int       `json:"reference_id"`
	ReferenceType       string    `json:"reference_type"`
	Action              string    `json:"action"`
	OldObj              []byte    `json:"old_obj"`
	NewObj              []byte    `json:"new_obj"`
	CorrelationId       string    `json:"correlation_id"`
}

var (
	pubsubClient     *pubsub.Client
	pubsubClientOnce sync.Once
	pubsubClientErr  error
)

// GetPubSubClient lazily creates a shared Pub/Sub client. Returns nil with an
// error when the project id is not configured, which callers treat as
// publishing disabled.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientOnce.Do(func() {
		projectId := os.Getenv("PUBSUB_PROJECT_ID")
		if projectId == "" {
			pubsubClientErr = fmt.Errorf("PUBSUB_PROJECT_ID not set")
			return
		}
		var opts []option.ClientOption
		if creds := os.Getenv("PUBSUB_CREDENTIALS_FILE"); creds != "" {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
		pubsubClient, pubsubClientErr = pubsub.NewClient(ctx, projectId, opts...)
	})
	return pubsubClient, pubsubClientErr
}

// PublishReconciliationEventWithResult publishes one message to the
// reconciliation topic, waits for the server ack, and returns the server
// message id for the outbox record.
func PublishReconciliationEventWithResult(ctx context.Context, businessId string, message PubSubMessage) (string, error) {
	client, err := GetPubSubClient(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return "", err
	}

	topicName := os.Getenv("PUBSUB_TOPIC")
	if topicName == "" {
		topicName = "reconciliation-events"
	}
	topic := client.Topic(topicName)
	result := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"messageId":     fmt.Sprint(message.ID),
			"correlationId": message.CorrelationId,
			"businessId":    businessId,
			"referenceType": message.ReferenceType,
			"action":        message.Action,
		},
	})
	return result.Get(ctx)
}
