package api_config

import (
	"time"

	"github.com/pulsekeep/pulsekeep/internal/obs"
	"github.com/pulsekeep/pulsekeep/internal/repository/objectstore"
	pg "github.com/pulsekeep/pulsekeep/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig(app App) *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		Env:         app.Env,
		Version:     app.Version,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig(app App) obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    app.Name,
		Env:    app.Env,
		Ver:    app.Version,
	}
}

// Ingest bounds what the ping endpoints accept.
type Ingest struct {
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

type Config struct {
	App    App                `mapstructure:"app"`
	Server Server             `mapstructure:"server"`
	DB     pg.Config          `mapstructure:"db"`
	S3     objectstore.Config `mapstructure:"s3"`
	Ingest Ingest             `mapstructure:"ingest"`
	OTEL   OTEL               `mapstructure:"otel"`
	Log    Log                `mapstructure:"log"`
}
