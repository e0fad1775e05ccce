package notifier_config

import (
	"time"

	"github.com/pulsekeep/pulsekeep/internal/obs"
	kafkax "github.com/pulsekeep/pulsekeep/internal/repository/kafka"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k *KafkaIn) AsConsumerConfig() *kafkax.ConsumerConfig {
	return &kafkax.ConsumerConfig{
		Brokers:       k.Brokers,
		Topic:         k.Topic,
		GroupID:       k.GroupID,
		FromBeginning: k.FromBeginning,
	}
}

type SMTP struct {
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type Webhook struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// RateLimit caps deliveries per channel with the shared token bucket.
type RateLimit struct {
	Capacity int           `mapstructure:"capacity"`
	Refill   time.Duration `mapstructure:"refill"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "pulsekeep/notifier",
	}
}

type Config struct {
	DB        pg.Config `mapstructure:"db"`
	In        KafkaIn   `mapstructure:"kafka_in"`
	SMTP      SMTP      `mapstructure:"smtp"`
	Webhook   Webhook   `mapstructure:"webhook"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
	Server    Server    `mapstructure:"server"`
	OTEL      OTEL      `mapstructure:"otel"`
	Log       Log       `mapstructure:"log"`
}
