package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"catalogue/pkg/logger"
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Handler processes one message body.
type Handler interface {
	Dispatch(ctx context.Context, body string) error
}

// ConsumerConfig configures long polling.
type ConsumerConfig struct {
	QueueURL          string
	MaxMessages       int32
	WaitTimeSeconds   int32
	VisibilityTimeout int32
	// HandleTimeout bounds processing of a single message.
	HandleTimeout time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxMessages <= 0 || c.MaxMessages > 10 {
		c.MaxMessages = 10
	}
	if c.WaitTimeSeconds <= 0 || c.WaitTimeSeconds > 20 {
		c.WaitTimeSeconds = 20
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 60
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = 45 * time.Second
	}
	return c
}

// Consumer long-polls a queue and deletes messages once handled or found poisonous.
type Consumer struct {
	client  SQSAPI
	handler Handler
	cfg     ConsumerConfig
	log     *logger.Logger
	backoff time.Duration
}

func NewConsumer(client SQSAPI, handler Handler, cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.Default()
	}
	return &Consumer{
		client:  client,
		handler: handler,
		cfg:     cfg.withDefaults(),
		log:     log.WithComponent("sqs_consumer").With("queue", cfg.QueueURL),
		backoff: 5 * time.Second,
	}
}

// NewSQSClient loads the default AWS configuration. A non-empty endpoint points the
// client at a local emulator.
func NewSQSClient(ctx context.Context, endpoint string) (*sqs.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Infow("SQS consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("SQS consumer stopped")
			return nil
		default:
		}

		if err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Errorw("SQS receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

// PollOnce receives one batch and handles its messages in order.
func (c *Consumer) PollOnce(ctx context.Context) error {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
		VisibilityTimeout:   c.cfg.VisibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("receive messages: %w", err)
	}
	for _, msg := range out.Messages {
		c.process(ctx, msg)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg types.Message) {
	log := c.log.With("message_id", aws.ToString(msg.MessageId))
	if aws.ToString(msg.ReceiptHandle) == "" {
		log.Errorw("message without receipt handle")
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandleTimeout)
	err := c.handler.Dispatch(hctx, aws.ToString(msg.Body))
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, ErrPoison):
		log.Errorw("dropping poison message", "error", err)
	default:
		log.Warnw("message handling failed, will be redelivered", "error", err)
		return
	}

	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		log.Errorw("failed to delete message", "error", err)
	}
}
