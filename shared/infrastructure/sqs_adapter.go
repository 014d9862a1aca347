package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/orderhub/order-system/shared/events"
	"github.com/pkg/errors"
)

// SQSSubscriberAdapter owns AWS client construction for the SQS subscriber
// and exposes a Subscribe/Close lifecycle
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	isRunning     bool
	queueURL      string
	endpoint      string
	opts          []SQSSubscriberOption
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter. A non-empty
// endpoint overrides the default resolver (LocalStack support).
func NewSQSSubscriberAdapter(queueURL, endpoint string, opts ...SQSSubscriberOption) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		queueURL: queueURL,
		endpoint: endpoint,
		opts:     opts,
	}, nil
}

// Subscribe starts consuming the queue with the given handler
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, handler events.EventHandler) error {
	if s.isRunning {
		return errors.New("subscriber is already running")
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = &s.endpoint
		}
	})

	s.sqsSubscriber = NewSQSEventSubscriber(sqsClient, s.queueURL, handler, s.opts...)

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.isRunning = true
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if !s.isRunning || s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(context.Background()); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.isRunning = false
	return nil
}
