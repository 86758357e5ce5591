package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/app"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Brokers []string
	GroupID string
	Enabled bool
}

var QueueConfig *Config

func Setup() {
	QueueConfig = &Config{
		Brokers: app.Queue.Brokers,
		GroupID: app.Queue.GroupID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialContext(ctx, "tcp", QueueConfig.Brokers[0])
	if err != nil {
		logrus.Warn("Kafka unreachable, queue disabled; sweeper will carry delivery")
		return
	}
	conn.Close()
	QueueConfig.Enabled = true
	logrus.Info("Kafka connection established")
}

func CreateTopic(topic string, partitions int, replicationFactor int) error {
	if QueueConfig == nil || len(QueueConfig.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is not set")
	}

	conn, err := kafka.Dial("tcp", QueueConfig.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
}
