package kafka

import (
	"errors"
	"time"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует outbox-сообщения в заданный topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт паблишер событий заказа. Пустой topic заменяется на TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *OutboxTopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	return p.producer.PublishJSON(p.topic, partitionKey(msg), NewEnvelope(msg, p.now()), map[string]string{
		HeaderEventType: msg.EventType,
	})
}

// DLQPublisher отправляет в dead letter queue сообщения, которые не удалось опубликовать.
// Payload содержит описание ошибки, сформированное outbox worker.
type DLQPublisher struct {
	producer      *Producer
	topic         string
	originalTopic string
	now           func() time.Time
}

// NewDLQPublisher создаёт паблишер DLQ для сообщений из originalTopic.
func NewDLQPublisher(producer *Producer, originalTopic string) *DLQPublisher {
	if originalTopic == "" {
		originalTopic = TopicOrderEvents
	}
	return &DLQPublisher{
		producer:      producer,
		topic:         TopicDeadLetterQueue,
		originalTopic: originalTopic,
		now:           time.Now,
	}
}

func (p *DLQPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	return p.producer.Publish(p.topic, partitionKey(msg), msg.Payload, map[string]string{
		HeaderEventType:     msg.EventType,
		HeaderOriginalTopic: p.originalTopic,
		HeaderFailedAt:      p.now().UTC().Format(time.RFC3339Nano),
	})
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
