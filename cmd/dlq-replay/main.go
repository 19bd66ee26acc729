// Команда dlq-replay перечитывает dead letter queue outbox и заново публикует
// события заказов. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "BACKOFFICE_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	// targetTopic пустой — берётся x-original-topic из заголовков сообщения.
	targetTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// deadLetter — тело сообщения, которое outbox worker кладёт в DLQ.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

type replayCandidate struct {
	topic string
	msg   domain.OutboxMessage
}

type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	Partitions(topic string) ([]int32, error)
	ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error)
	Close() error
}

type replayer interface {
	Replay(topic string, msg domain.OutboxMessage) error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) Partitions(topic string) ([]int32, error) {
	return s.consumer.Partitions(topic)
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionStream, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaSource) Close() error { return s.consumer.Close() }

// kafkaReplayer публикует событие тем же конвертом, что и outbox worker.
type kafkaReplayer struct {
	producer *kafka.Producer
}

func (r kafkaReplayer) Replay(topic string, msg domain.OutboxMessage) error {
	return kafka.NewOutboxPublisher(r.producer, topic).Publish(msg)
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, target, closeFn, err := connect(cfg)
	if err != nil {
		stop()
		log.WithError(err).Fatal("connect to kafka")
	}
	defer closeFn()

	if _, err := replay(ctx, cfg, source, target); err != nil {
		closeFn()
		stop()
		log.WithError(err).Fatal("dlq replay failed")
	}
}

func parseConfig(args []string, stderr io.Writer) (config, error) {
	var (
		cfg        config
		brokersRaw string
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to read")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "override target topic (default: original topic from headers)")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish messages; default is dry-run")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle period")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// connect создаёт consumer DLQ и, в режиме execute, producer для повторной публикации.
func connect(cfg config) (partitionSource, replayer, func(), error) {
	consumerCfg := sarama.NewConfig()
	consumerCfg.Consumer.Return.Errors = true
	consumer, err := sarama.NewConsumer(cfg.brokers, consumerCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	source := saramaSource{consumer: consumer}

	if !cfg.execute {
		return source, nil, func() { _ = source.Close() }, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, log.WithField("component", "dlq-replay"))
	if err != nil {
		_ = source.Close()
		return nil, nil, nil, err
	}
	return source, kafkaReplayer{producer: producer}, func() {
		_ = producer.Close()
		_ = source.Close()
	}, nil
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func replay(ctx context.Context, cfg config, source partitionSource, target replayer) (replayStats, error) {
	var total replayStats
	if cfg.execute && target == nil {
		return total, errors.New("replayer is required in execute mode")
	}

	partitions, err := source.Partitions(cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := replayPartition(ctx, cfg, source, target, partition, cfg.limit-total.processed)
		total.processed += stats.processed
		total.replayed += stats.replayed
		total.skipped += stats.skipped
		if err != nil {
			return total, err
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

func replayPartition(ctx context.Context, cfg config, source partitionSource, target replayer, partition int32, limit int) (replayStats, error) {
	var stats replayStats

	stream, err := source.ConsumePartition(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = stream.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr, ok := <-stream.Errors():
			if ok && cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case raw, ok := <-stream.Messages():
			if !ok {
				return stats, nil
			}
			idle.Reset(cfg.idleTimeout)
			stats.processed++

			candidate, err := decodeDeadLetter(raw, cfg.targetTopic)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": raw.Partition,
					"offset":    raw.Offset,
				}).Warn("skip unsupported dlq message")
				continue
			}

			entry := log.WithFields(log.Fields{
				"offset":       raw.Offset,
				"outbox_id":    candidate.msg.ID,
				"event_type":   candidate.msg.EventType,
				"target_topic": candidate.topic,
			})
			if !cfg.execute {
				entry.Info("dlq replay candidate")
				stats.replayed++
				continue
			}
			if err := target.Replay(candidate.topic, candidate.msg); err != nil {
				return stats, fmt.Errorf("replay outbox message %s: %w", candidate.msg.ID, err)
			}
			entry.Info("dlq message replayed")
			stats.replayed++
		}
	}
	return stats, nil
}

// decodeDeadLetter восстанавливает исходное outbox-сообщение из записи DLQ.
func decodeDeadLetter(raw *sarama.ConsumerMessage, targetOverride string) (replayCandidate, error) {
	var dl deadLetter
	if err := json.Unmarshal(raw.Value, &dl); err != nil {
		return replayCandidate{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	if dl.OutboxID == "" || dl.EventType == "" {
		return replayCandidate{}, errors.New("dlq payload has no outbox id or event type")
	}

	topic := targetOverride
	if topic == "" {
		topic = header(raw, kafka.HeaderOriginalTopic)
	}
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}

	var payload []byte
	if len(dl.Payload) > 0 && string(dl.Payload) != "null" {
		payload = dl.Payload
	}
	return replayCandidate{
		topic: topic,
		msg: domain.OutboxMessage{
			ID:            dl.OutboxID,
			AggregateType: dl.AggregateType,
			AggregateID:   dl.AggregateID,
			EventType:     dl.EventType,
			Payload:       payload,
		},
	}, nil
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
