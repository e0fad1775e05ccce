package kafka

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

func (s TopicSpec) withDefaults() TopicSpec {
	if s.NumPartitions <= 0 {
		s.NumPartitions = 1
	}
	if s.ReplicationFactor <= 0 {
		s.ReplicationFactor = 1
	}
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
	return s
}

// EnsureTopic creates the topic through the cluster controller and waits
// until partition metadata is visible. "Already exists" from the broker
// is fine; only the readiness wait is best-effort.
func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	spec = spec.withDefaults()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.Warn("kafka dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	cc, err := dialController(ctx, conn)
	if err != nil {
		log.Warn("kafka controller dial failed", zap.Error(err))
		return err
	}
	defer cc.Close()

	err = cc.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	if err != nil {
		log.Debug("create topic (maybe exists)", zap.String("topic", spec.Name), zap.Error(err))
	}

	if waitTopicReady(conn, spec.Name, spec.MaxWait) {
		log.Info("topic ready", zap.String("topic", spec.Name))
	} else {
		log.Warn("topic not confirmed ready in time", zap.String("topic", spec.Name))
	}
	return nil
}

func dialController(ctx context.Context, conn *kafka.Conn) (*kafka.Conn, error) {
	controller, err := conn.Controller()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	return kafka.DialContext(ctx, "tcp", addr)
}

func waitTopicReady(conn *kafka.Conn, topic string, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if ps, err := conn.ReadPartitions(topic); err == nil && len(ps) > 0 {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}
