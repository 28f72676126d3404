package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN    string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	ScanIntervalMS    int `env:"SCAN_INTERVAL_MS" envDefault:"30000"`
	ScanBatch         int `env:"SCAN_BATCH" envDefault:"100"`
	StaleEndedMinutes int `env:"STALE_ENDED_MINUTES" envDefault:"15"`

	OracleBaseURL   string `env:"ORACLE_BASE_URL"`
	OracleAPIKey    string `env:"ORACLE_API_KEY"`
	OracleTimeoutMS int    `env:"ORACLE_TIMEOUT_MS" envDefault:"5000"`

	LedgerBaseURL    string  `env:"LEDGER_BASE_URL"`
	LedgerAPIKey     string  `env:"LEDGER_API_KEY"`
	LedgerTimeoutMS  int     `env:"LEDGER_TIMEOUT_MS" envDefault:"15000"`
	LedgerRatePerSec float64 `env:"LEDGER_RATE_PER_SEC" envDefault:"5"`
	LedgerBurst      int     `env:"LEDGER_BURST" envDefault:"5"`

	TreasuryMasterKey string `env:"TREASURY_MASTER_KEY"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"events"`

	AnnounceEnabled     bool   `env:"ANNOUNCE_ENABLED" envDefault:"false"`
	AnnounceConfigPath  string `env:"ANNOUNCE_CONFIG_PATH"`
	AnnounceConfigJSON  string `env:"ANNOUNCE_CONFIG_JSON"`
	AnnounceWorkers     int    `env:"ANNOUNCE_WORKERS" envDefault:"2"`
	AnnounceRetryMax    int    `env:"ANNOUNCE_RETRY_MAX" envDefault:"3"`
	AnnounceRetryBaseMS int    `env:"ANNOUNCE_RETRY_BASE_MS" envDefault:"500"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c ServerConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMS) * time.Millisecond
}

func (c ServerConfig) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMS) * time.Millisecond
}

func (c ServerConfig) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutMS) * time.Millisecond
}

func (c ServerConfig) StaleEndedAfter() time.Duration {
	return time.Duration(c.StaleEndedMinutes) * time.Minute
}
