// Package bootstrap assembles the settlement runtime from server config.
package bootstrap

import (
	"context"
	"fmt"

	"event-settlement/internal/announce"
	appevents "event-settlement/internal/app/events"
	"event-settlement/internal/config"
	"event-settlement/internal/ledger"
	"event-settlement/internal/oracle"
	"event-settlement/internal/settlement"
	"event-settlement/internal/store"
	"event-settlement/internal/treasury"
	"event-settlement/internal/trigger"

	"github.com/rs/zerolog/log"
)

type Runtime struct {
	Store    *store.Store
	Engine   *settlement.Engine
	Events   *appevents.Service
	Scanner  *trigger.Scanner
	Announce *announce.Manager

	nats *announce.NATSSink
}

func New(ctx context.Context, cfg config.ServerConfig) (*Runtime, error) {
	if cfg.MigrateOnStart {
		if err := store.Migrate(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("store init: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	var (
		secrets treasury.SecretResolver
		sealer  treasury.Sealer
	)
	if cfg.TreasuryMasterKey != "" {
		c, err := treasury.NewCipher(cfg.TreasuryMasterKey)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("treasury cipher: %w", err)
		}
		secrets, sealer = c, c
	} else {
		log.Warn().Msg("TREASURY_MASTER_KEY not set; payouts will fail with treasury_secret_unavailable")
	}

	annCfg, err := announce.ConfigFromServer(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("announce config: %w", err)
	}
	rt := &Runtime{Store: st, Announce: announce.NewManager(annCfg)}
	sinks := announce.Multi{rt.Announce}
	if cfg.NATSURL != "" {
		ns, err := announce.NewNATSSink(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable; results will not be published to nats")
		} else {
			rt.nats = ns
			sinks = append(sinks, ns)
		}
	}

	oc := oracle.NewHTTPClient(cfg.OracleBaseURL, cfg.OracleAPIKey, cfg.OracleTimeout())
	lc := ledger.NewHTTPClient(ledger.HTTPConfig{
		BaseURL:    cfg.LedgerBaseURL,
		APIKey:     cfg.LedgerAPIKey,
		Timeout:    cfg.LedgerTimeout(),
		RatePerSec: cfg.LedgerRatePerSec,
		Burst:      cfg.LedgerBurst,
	})

	rt.Engine = settlement.NewEngine(st, oc, lc, secrets, sinks, settlement.Options{
		TransferTimeout: cfg.LedgerTimeout(),
		OracleTimeout:   cfg.OracleTimeout(),
	})
	rt.Events = appevents.NewService(st, rt.Engine, lc, oc, sealer)
	rt.Scanner = trigger.NewScanner(st, rt.Engine, trigger.Config{
		Interval:   cfg.ScanInterval(),
		Batch:      cfg.ScanBatch,
		StaleAfter: cfg.StaleEndedAfter(),
	})
	return rt, nil
}

func (r *Runtime) Close() {
	if r.nats != nil {
		r.nats.Close()
	}
	r.Store.Close()
}
