package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
)

// initKafkaProducer подключается к брокерам из списка через запятую.
// Пустой список — Kafka выключена, возвращается nil, nil.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := Config{KafkaBrokers: brokers}.kafkaBrokerList()
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// outboxPublishers выбирает, куда outbox worker отправляет события.
// Без Kafka события пишутся в лог и помечаются отправленными.
func outboxPublishers(producer *kafka.Producer, logger *log.Entry) (main, dlq domain.OutboxPublisher) {
	if producer == nil {
		return logPublisher{logger: logger.WithField("component", "outbox-log")}, nil
	}
	return kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		kafka.NewDLQPublisher(producer, kafka.TopicOrderEvents)
}

type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_type":   msg.EventType,
		"aggregate_id": msg.AggregateID,
	}).Info("order event")
	return nil
}
