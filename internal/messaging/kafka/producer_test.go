package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	config := NewConfig()

	require.True(t, config.Producer.Idempotent)
	require.Equal(t, sarama.WaitForAll, config.Producer.RequiredAcks)
	require.True(t, config.Producer.Return.Successes)
	require.Equal(t, 1, config.Net.MaxOpenRequests)
}

func TestProducer_PublishWithHeaders(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicOrderEvents, msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		require.Equal(t, "order-1", string(key))
		require.Len(t, msg.Headers, 1)
		require.Equal(t, HeaderEventType, string(msg.Headers[0].Key))
		return nil
	})

	producer := NewProducerFromSync(mockProducer, log.WithField("component", "kafka-producer-test"))
	require.NoError(t, producer.Publish(TopicOrderEvents, "order-1", []byte(`{}`), map[string]string{
		HeaderEventType: "OrderCreated",
	}))
	require.NoError(t, producer.Close())
}

func TestProducer_PublishError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFromSync(mockProducer, nil)
	err := producer.PublishJSON(TopicOrderEvents, "order-1", map[string]string{"a": "b"}, nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_PublishJSONMarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := NewProducerFromSync(mockProducer, nil)
	err := producer.PublishJSON(TopicOrderEvents, "order-1", make(chan int), nil)
	require.Error(t, err)
	require.NoError(t, producer.Close())
}
