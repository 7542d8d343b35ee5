package main

import (
	"context"
	"os"

	salesforce "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/importer"
	"github.com/sells-group/intake-cli/internal/ledger"
	"github.com/sells-group/intake-cli/internal/reconcile"
	"github.com/sells-group/intake-cli/pkg/gmail"
	"github.com/sells-group/intake-cli/pkg/recordstore"
)

func initLedger(ctx context.Context) (ledger.Store, error) {
	switch cfg.Ledger.Driver {
	case "sqlite":
		dsn := cfg.Ledger.DSN
		if dsn == "" {
			dsn = "intake.db"
		}
		return ledger.NewSQLite(dsn)
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Ledger.DSN, nil)
	default:
		return nil, eris.Errorf("unsupported ledger driver: %s", cfg.Ledger.Driver)
	}
}

func initRecordStore() (recordstore.Client, error) {
	pemData, err := os.ReadFile(cfg.RecordStore.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read record store JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.RecordStore.LoginURL,
		Username:       cfg.RecordStore.Username,
		ConsumerKey:    cfg.RecordStore.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init record store")
	}

	return recordstore.NewClient(sf, recordstore.WithRateLimit(cfg.RecordStore.RateLimit)), nil
}

func initGmail() gmail.Client {
	return gmail.NewClient(
		cfg.Gmail.ClientID,
		cfg.Gmail.ClientSecret,
		cfg.Gmail.RefreshToken,
		gmail.WithBaseURL(cfg.Gmail.BaseURL),
		gmail.WithTokenURL(cfg.Gmail.TokenURL),
		gmail.WithProcessedLabel(cfg.Gmail.ProcessedLabel),
		gmail.WithRateLimit(cfg.Gmail.RateLimit),
	)
}

// initImporter validates config and wires the full import pipeline. The
// returned ledger store is also used directly by subcommands.
func initImporter(ctx context.Context) (*importer.Importer, ledger.Store, error) {
	if err := cfg.Validate("import"); err != nil {
		return nil, nil, err
	}

	led, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := led.Migrate(ctx); err != nil {
		led.Close()
		return nil, nil, eris.Wrap(err, "migrate ledger")
	}

	store, err := initRecordStore()
	if err != nil {
		led.Close()
		return nil, nil, err
	}

	mapping := reconcile.DefaultMapping()
	if cfg.Importer.MappingFile != "" {
		mapping, err = reconcile.LoadMapping(cfg.Importer.MappingFile)
		if err != nil {
			led.Close()
			return nil, nil, err
		}
	}

	imp := importer.New(initGmail(), store, led, mapping, importer.Config{
		Query:           cfg.Gmail.Query,
		BatchSize:       cfg.Importer.BatchSize,
		BudgetAllowance: cfg.Importer.BudgetAllowance,
		BudgetThreshold: cfg.Importer.BudgetThreshold,
		WebhookURL:      cfg.Report.WebhookURL,
	})
	return imp, led, nil
}
