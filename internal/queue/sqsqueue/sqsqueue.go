// Package sqsqueue implements queue.Queue on Amazon SQS, one SQS queue per topic.
package sqsqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"thirdcoast.systems/scribe/internal/queue"
)

// API is the subset of *sqs.Client the queue uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

type Queue struct {
	client API
	urls   map[string]string
	// WaitTime is the long-poll duration per Receive (SQS caps it at 20s).
	WaitTime time.Duration
}

var _ queue.Queue = (*Queue)(nil)

// New maps each topic to its queue URL.
func New(client API, urls map[string]string) *Queue {
	return &Queue{client: client, urls: urls, WaitTime: 20 * time.Second}
}

func (q *Queue) url(topic string) (string, error) {
	u, ok := q.urls[topic]
	if !ok || u == "" {
		return "", fmt.Errorf("sqsqueue: no queue url for topic %q", topic)
	}
	return u, nil
}

func (q *Queue) Publish(ctx context.Context, topic string, body []byte) error {
	url, err := q.url(topic)
	if err != nil {
		return err
	}
	if _, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		return fmt.Errorf("send %s message: %w", topic, err)
	}
	return nil
}

func (q *Queue) Receive(ctx context.Context, topic string, maxMessages int, visibility time.Duration) ([]queue.Message, error) {
	url, err := q.url(topic)
	if err != nil {
		return nil, err
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(url),
		MaxNumberOfMessages:         int32(min(max(maxMessages, 1), 10)),
		WaitTimeSeconds:             int32(min(q.WaitTime/time.Second, 20)),
		VisibilityTimeout:           int32(visibility / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("receive %s messages: %w", topic, err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		attempts, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, queue.Message{
			ID:       aws.ToString(m.MessageId),
			Topic:    topic,
			Body:     []byte(aws.ToString(m.Body)),
			Attempts: attempts,
			Receipt:  aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *Queue) Ack(ctx context.Context, m queue.Message) error {
	url, err := q.url(m.Topic)
	if err != nil {
		return err
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(m.Receipt),
	}); err != nil {
		return mapReceiptErr(fmt.Errorf("delete message %s: %w", m.ID, err))
	}
	return nil
}

// Release shortens the visibility window to delay. SQS keeps no per-delivery error text,
// so cause is only used by callers for logging.
func (q *Queue) Release(ctx context.Context, m queue.Message, delay time.Duration, cause error) error {
	url, err := q.url(m.Topic)
	if err != nil {
		return err
	}
	if _, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(url),
		ReceiptHandle:     aws.String(m.Receipt),
		VisibilityTimeout: int32(delay / time.Second),
	}); err != nil {
		return mapReceiptErr(fmt.Errorf("release message %s: %w", m.ID, err))
	}
	return nil
}

func mapReceiptErr(err error) error {
	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %v", queue.ErrReceiptExpired, err)
	}
	return err
}
