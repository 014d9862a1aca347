package infrastructure

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/orderhub/order-system/shared/events"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
)

const (
	SQSMessageIDKey     = "sqs_message_id"
	SQSReceiptHandleKey = "sqs_receipt_handle"
)

// sqsAPI is the subset of the SQS client the subscriber uses
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type sqsMessage struct {
	Message types.Message
	Event   *events.Event
	Err     error
}

// SQSEventSubscriber pulls from one durable queue with competing consumer
// workers. The worker pool is elastic between a configured minimum and
// maximum: extra workers are spawned while the inbound buffer backs up and
// retire once they sit idle.
//
// Messages older than the configured TTL are routed to the dead-letter queue
// instead of being handled. Handled messages are acknowledged (deleted)
// whether or not the handler reported an error, so consumer failure never
// triggers broker redelivery; TTL expiry is the only path to the DLQ.
type SQSEventSubscriber struct {
	mux              sync.RWMutex
	inboundMessages  chan *sqsMessage
	outboundMessages chan *sqsMessage
	cancel           context.CancelFunc
	running          atomic.Bool
	activeWorkers    atomic.Int32
	options          *sqsSubscriberOptions

	client   sqsAPI
	queueURL string
	handler  events.EventHandler
}

type sqsSubscriberOptions struct {
	minWorkers                 int32
	maxWorkers                 int32
	readers                    int32
	cleaners                   int32
	maxNumberOfMessages        int32
	waitTimeSeconds            int32
	visibilityTimeout          int32
	sleepTimeAfterEmptyReceive time.Duration
	sleepTimeAfterError        time.Duration
	ack                        bool
	messageTTL                 time.Duration
	dlqURL                     string
	dlqRoutingKey              string
	topicPattern               events.Topic
	workerIdleTimeout          time.Duration
	scaleInterval              time.Duration
}

type SQSSubscriberOption func(*sqsSubscriberOptions)

// WithWorkerBounds sets the minimum and maximum number of concurrent
// consumer workers
func WithWorkerBounds(minWorkers, maxWorkers int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.minWorkers = minWorkers
		o.maxWorkers = maxWorkers
	}
}

func WithReaders(readers int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.readers = readers
	}
}

func WithVisibilityTimeout(timeout int32) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.visibilityTimeout = timeout
	}
}

// WithDeadLetterQueue routes TTL-expired messages to the given queue under
// the given routing key
func WithDeadLetterQueue(dlqURL, dlqRoutingKey string, messageTTL time.Duration) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.dlqURL = dlqURL
		o.dlqRoutingKey = dlqRoutingKey
		o.messageTTL = messageTTL
	}
}

// WithTopicPattern delivers only messages whose routing key matches the
// pattern; everything else is acknowledged without handling
func WithTopicPattern(pattern events.Topic) SQSSubscriberOption {
	return func(o *sqsSubscriberOptions) {
		o.topicPattern = pattern
	}
}

// NewSQSEventSubscriber creates a new SQS event subscriber
func NewSQSEventSubscriber(
	client sqsAPI,
	queueURL string,
	handler events.EventHandler,
	opts ...SQSSubscriberOption,
) *SQSEventSubscriber {
	options := &sqsSubscriberOptions{
		minWorkers:                 2,
		maxWorkers:                 10,
		readers:                    1,
		cleaners:                   2,
		maxNumberOfMessages:        5,
		waitTimeSeconds:            15,
		visibilityTimeout:          30,
		sleepTimeAfterEmptyReceive: 10 * time.Second,
		sleepTimeAfterError:        20 * time.Second,
		ack:                        true,
		messageTTL:                 30 * time.Second,
		topicPattern:               "#",
		workerIdleTimeout:          30 * time.Second,
		scaleInterval:              time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &SQSEventSubscriber{
		client:           client,
		queueURL:         queueURL,
		handler:          handler,
		inboundMessages:  make(chan *sqsMessage, 10),
		outboundMessages: make(chan *sqsMessage, 10),
		options:          options,
	}
}

// Start starts the subscriber goroutines
func (s *SQSEventSubscriber) Start(ctx context.Context) error {
	if s.running.Load() {
		return nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	s.inboundMessages = make(chan *sqsMessage, 10)
	s.outboundMessages = make(chan *sqsMessage, 10)
	s.cancel = cancel

	for i := int32(0); i < s.options.minWorkers; i++ {
		go s.startWorker(ctx, false)
	}

	for i := int32(0); i < s.options.readers; i++ {
		go s.startReader(ctx)
	}

	for i := int32(0); i < s.options.cleaners; i++ {
		go s.startCleaner(ctx)
	}

	go s.startScaler(ctx)

	s.running.Store(true)

	return nil
}

// Stop stops the subscriber
func (s *SQSEventSubscriber) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	s.cancel = nil
	s.running.Store(false)

	return nil
}

// ActiveWorkers reports the current size of the consumer pool
func (s *SQSEventSubscriber) ActiveWorkers() int32 {
	return s.activeWorkers.Load()
}

// startWorker consumes inbound messages. A transient worker was spawned by
// the scaler and exits once it sits idle for the configured timeout.
func (s *SQSEventSubscriber) startWorker(ctx context.Context, transient bool) {
	s.activeWorkers.Add(1)
	defer s.activeWorkers.Add(-1)

	idle := time.NewTimer(s.options.workerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			if transient {
				return
			}
			idle.Reset(s.options.workerIdleTimeout)
		case message := <-s.inboundMessages:
			if message == nil {
				continue
			}
			s.handle(ctx, message)
			idle.Reset(s.options.workerIdleTimeout)
		}
	}
}

// startScaler grows the worker pool toward the maximum while the inbound
// buffer stays backed up
func (s *SQSEventSubscriber) startScaler(ctx context.Context) {
	ticker := time.NewTicker(s.options.scaleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			backlog := len(s.inboundMessages) > cap(s.inboundMessages)/2
			if backlog && s.activeWorkers.Load() < s.options.maxWorkers {
				go s.startWorker(ctx, true)
			}
		}
	}
}

func (s *SQSEventSubscriber) startReader(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.read(ctx); err != nil {
				time.Sleep(s.options.sleepTimeAfterError)
			}
		}
	}
}

func (s *SQSEventSubscriber) startCleaner(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.outboundMessages:
			if message == nil {
				continue
			}
			if err := s.clean(ctx, message); err != nil {
				log.Printf("failed to clean message: %v", err)
			}
		}
	}
}

func (s *SQSEventSubscriber) read(ctx context.Context) error {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: s.options.maxNumberOfMessages,
		WaitTimeSeconds:     s.options.waitTimeSeconds,
		VisibilityTimeout:   s.options.visibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameSentTimestamp,
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return errors.Wrap(err, "failed to receive message from SQS")
	}

	if len(output.Messages) == 0 {
		time.Sleep(s.options.sleepTimeAfterEmptyReceive)
		return nil
	}

	for _, message := range output.Messages {
		if s.expired(message) {
			if err := s.deadLetter(ctx, message); err != nil {
				log.Printf("failed to dead-letter expired message: %v", err)
			}
			continue
		}

		event, err := s.decode(message)
		if err != nil {
			// Malformed body: leave it for TTL dead-lettering
			log.Printf("skipping malformed message: %v", err)
			continue
		}

		if !event.Topic.Matches(s.options.topicPattern) {
			// Not for this consumer; acknowledge without handling
			select {
			case s.outboundMessages <- &sqsMessage{Message: message}:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		select {
		case s.inboundMessages <- &sqsMessage{
			Message: message,
			Event:   event,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// expired reports whether the message outlived the configured TTL
func (s *SQSEventSubscriber) expired(message types.Message) bool {
	if s.options.messageTTL <= 0 || s.options.dlqURL == "" {
		return false
	}

	sentMillis, err := strconv.ParseInt(message.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)], 10, 64)
	if err != nil {
		return false
	}

	sentAt := time.UnixMilli(sentMillis)
	return time.Since(sentAt) > s.options.messageTTL
}

// deadLetter forwards the message to the DLQ and removes it from the
// primary queue
func (s *SQSEventSubscriber) deadLetter(ctx context.Context, message types.Message) error {
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.options.dlqURL),
		MessageBody: message.Body,
		MessageAttributes: map[string]types.MessageAttributeValue{
			TopicAttributeKey: {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.options.dlqRoutingKey),
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to forward message to DLQ")
	}

	_, err = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: message.ReceiptHandle,
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete dead-lettered message")
	}

	return nil
}

// decode unwraps the queue envelope into an event
func (s *SQSEventSubscriber) decode(message types.Message) (*events.Event, error) {
	var envelope queueEnvelope
	if err := json.Unmarshal([]byte(*message.Body), &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message body")
	}

	metadata := envelope.Metadata
	if metadata == nil {
		metadata = make(events.Metadata)
	}

	if message.MessageId != nil {
		metadata.Set(SQSMessageIDKey, *message.MessageId)
	}
	if message.ReceiptHandle != nil {
		metadata.Set(SQSReceiptHandleKey, *message.ReceiptHandle)
	}

	for k, v := range message.MessageAttributes {
		if v.StringValue != nil {
			metadata.Set(k, *v.StringValue)
		}
	}

	return &events.Event{
		ID:        models.ID(envelope.ID),
		Topic:     events.Topic(envelope.Topic),
		Data:      envelope.Payload,
		Metadata:  metadata,
		Timestamp: envelope.Timestamp,
	}, nil
}

func (s *SQSEventSubscriber) handle(ctx context.Context, message *sqsMessage) {
	s.mux.RLock()
	handler := s.handler
	s.mux.RUnlock()

	if handler == nil {
		message.Err = errors.New("no handler configured")
	} else {
		message.Err = handler.Handle(ctx, message.Event)
	}

	select {
	case s.outboundMessages <- message:
	case <-ctx.Done():
	}
}

// clean acknowledges the message. Handler errors are logged, never turned
// into a negative acknowledgement: redelivery is governed by the TTL alone.
func (s *SQSEventSubscriber) clean(ctx context.Context, message *sqsMessage) error {
	if message.Err != nil {
		log.Printf("handler error for message %s: %v", aws.ToString(message.Message.MessageId), message.Err)
	}

	if !s.options.ack {
		return nil
	}

	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: message.Message.ReceiptHandle,
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete message from SQS")
	}

	return nil
}
