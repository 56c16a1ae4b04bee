package storage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"time"

	"github.com/Shopify/sarama"

	"github.com/janelia-flyem/blockflow/blockflow"
)

var (
	// producer
	kafkaProducer sarama.AsyncProducer

	// the kafka topic for chunk activity logging
	kafkaActivityTopicName string
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * blockflow.Kilo

// KafkaConfig describes kafka servers used for publishing per-chunk
// completion events.  Leaving Servers empty disables publishing.
type KafkaConfig struct {
	TopicActivity string   `toml:"topic_activity"` // if supplied, overrides the default topic
	Servers       []string `toml:"servers"`
}

// KafkaActivityTopic returns the topic name used for logging chunk activity.
func KafkaActivityTopic() string {
	return kafkaActivityTopicName
}

// Initialize sets up the async producer and default activity topic.
func (kc KafkaConfig) Initialize(hostID string) error {
	if len(kc.Servers) == 0 {
		return nil
	}
	if kc.TopicActivity != "" {
		kafkaActivityTopicName = kc.TopicActivity
	} else {
		kafkaActivityTopicName = "blockflow-activity-" + hostID
	}
	reg, err := regexp.Compile(`[^a-zA-Z0-9\\._\\-]+`)
	if err != nil {
		return err
	}
	kafkaActivityTopicName = reg.ReplaceAllString(kafkaActivityTopicName, "-")

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kafkaProducer, err = sarama.NewAsyncProducer(kc.Servers, config); err != nil {
		return err
	}

	go func() {
		for err := range kafkaProducer.Errors() {
			blockflow.Errorf("error on kafka send: %v\n", err)
		}
	}()
	blockflow.Infof("Kafka topic for chunk activity: %s\n", kafkaActivityTopicName)
	return nil
}

// KafkaShutdown makes sure that the kafka queue is flushed before stopping.
func KafkaShutdown() {
	if kafkaProducer == nil {
		return
	}
	if err := kafkaProducer.Close(); err != nil {
		blockflow.Errorf("Kafka producer had error on close: %v\n", err)
	} else {
		blockflow.Infof("Successfully shut down kafka producer.\n")
	}
}

// LogActivityToKafka publishes a chunk activity record, typically on
// completion or failure of a logical chunk.
func LogActivityToKafka(activity map[string]interface{}) {
	if kafkaProducer != nil {
		go func() {
			jsonmsg, err := json.Marshal(activity)
			if err != nil {
				blockflow.Errorf("unable to marshal activity for kafka logging: %v\n", err)
				return
			}
			if err := KafkaProduceMsg(jsonmsg, kafkaActivityTopicName); err != nil {
				blockflow.Errorf("unable to publish activity: %v\n", err)
			}
		}()
	}
}

// KafkaProduceMsg sends a message to kafka.
func KafkaProduceMsg(value []byte, topicName string) (err error) {
	if kafkaProducer == nil {
		return nil
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	msg := &sarama.ProducerMessage{Topic: topicName, Value: sarama.ByteEncoder(value), Key: timeKey}
	kafkaProducer.Input() <- msg
	return nil
}
