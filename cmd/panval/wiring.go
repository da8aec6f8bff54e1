package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"panval/internal/platform/config"
	"panval/internal/platform/httpserver"
	platformredis "panval/internal/platform/redis"
	"panval/internal/screening/ports"
	"panval/internal/screening/report"
	"panval/internal/screening/store/file"
	"panval/internal/screening/store/kafka"
	"panval/internal/screening/store/multi"
	"panval/internal/screening/store/postgres"
	"panval/internal/screening/store/rediscache"
	"panval/internal/screening/store/sqlite"
)

// deps opens backends on first use and closes them in reverse order.
type deps struct {
	cfg    config.Config
	logger *slog.Logger

	pg      *postgres.Store
	lite    *sqlite.Store
	closers []func() error
	checks  map[string]httpserver.HealthFunc
}

func newDeps(cfg config.Config, logger *slog.Logger) *deps {
	return &deps{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]httpserver.HealthFunc),
	}
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func (d *deps) postgres(ctx context.Context) (*postgres.Store, error) {
	if d.pg != nil {
		return d.pg, nil
	}
	db, err := postgres.Open(ctx, d.cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, db.Close)
	d.checks["postgres"] = db.PingContext

	store := postgres.New(db,
		postgres.WithInputTable(d.cfg.Postgres.InputTable, d.cfg.Postgres.InputColumn),
		postgres.WithBatchSize(d.cfg.Postgres.BatchSize),
	)
	if d.cfg.Postgres.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	d.pg = store
	d.logger.DebugContext(ctx, "postgres store ready", "input_table", d.cfg.Postgres.InputTable)
	return store, nil
}

func (d *deps) sqlite(ctx context.Context) (*sqlite.Store, error) {
	if d.lite != nil {
		return d.lite, nil
	}
	db, err := sqlite.Open(ctx, d.cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, db.Close)

	store := sqlite.New(db, sqlite.WithInputTable(d.cfg.SQLite.InputTable, d.cfg.SQLite.InputColumn))
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	d.lite = store
	d.logger.DebugContext(ctx, "sqlite store ready", "path", d.cfg.SQLite.Path)
	return store, nil
}

func (d *deps) source(ctx context.Context) (ports.Source, error) {
	switch d.cfg.Source.Kind {
	case config.SourceFile:
		var opts []file.Option
		if d.cfg.Source.Column != "" {
			opts = append(opts, file.WithColumn(d.cfg.Source.Column))
		}
		return file.NewSource(d.cfg.Source.Path, file.Format(d.cfg.Source.Format), opts...)
	case config.SourcePostgres:
		return d.postgres(ctx)
	case config.SourceSQLite:
		return d.sqlite(ctx)
	default:
		return nil, fmt.Errorf("unknown source %q", d.cfg.Source.Kind)
	}
}

func (d *deps) sink(ctx context.Context, out io.Writer) (ports.Sink, error) {
	var sinks []multi.Named
	for _, name := range d.cfg.Sinks {
		var (
			sink ports.Sink
			err  error
		)
		switch name {
		case config.SinkReport:
			sink = report.New(out, report.WithDetails(d.cfg.Report.Details))
		case config.SinkPostgres:
			sink, err = d.postgres(ctx)
		case config.SinkSQLite:
			sink, err = d.sqlite(ctx)
		case config.SinkKafka:
			sink, err = d.kafka(ctx)
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("%s sink: %w", name, err)
		}
		sinks = append(sinks, multi.Named{Name: name, Sink: sink})
	}
	return multi.New(sinks...)
}

func (d *deps) kafka(ctx context.Context) (ports.Sink, error) {
	client, err := kafka.NewClient(d.cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() error {
		client.Close()
		return nil
	})
	d.checks["kafka"] = client.Ping

	if err := kafka.EnsureTopic(ctx, client, d.cfg.Kafka.Topic, d.cfg.Kafka.Partitions, d.cfg.Kafka.ReplicationFactor); err != nil {
		return nil, err
	}
	d.logger.DebugContext(ctx, "kafka sink ready", "topic", d.cfg.Kafka.Topic)
	return kafka.New(client, d.cfg.Kafka.Topic)
}

// cache returns nil when no Redis URL is configured.
func (d *deps) cache(ctx context.Context) (ports.Cache, error) {
	client, err := platformredis.New(ctx, d.cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	d.closers = append(d.closers, client.Close)
	d.checks["redis"] = client.Health

	return rediscache.New(client,
		rediscache.WithTTL(d.cfg.Redis.CacheTTL),
		rediscache.WithKeyPrefix(d.cfg.Redis.KeyPrefix),
	)
}
