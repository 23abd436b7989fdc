// Package config loads the process-wide configuration once at
// startup. The struct is read-only after Load; components receive
// the values they need through their constructors.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	// Upstream data API (PostgREST-compatible).
	PostgrestURL string `envconfig:"POSTGREST_URL" required:"true"`
	AnonKey      string `envconfig:"POSTGREST_ANON_KEY" required:"true"`

	// ServiceKey is the elevated credential used only by the
	// composite order-creation workflow. Leaving it empty disables
	// that one endpoint without affecting the rest of the service.
	ServiceKey string `envconfig:"POSTGREST_SERVICE_KEY" default:""`

	ReadTimeout     time.Duration `envconfig:"UPSTREAM_READ_TIMEOUT" default:"10s"`
	WorkflowTimeout time.Duration `envconfig:"ORDER_WORKFLOW_TIMEOUT" default:"20s"`

	WorkflowLogPath string `envconfig:"WORKFLOW_LOG_PATH" default:"./data/workflow.db"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
