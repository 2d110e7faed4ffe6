package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"assembly-ledger/pkg/config"
	"assembly-ledger/pkg/db"
	"assembly-ledger/pkg/ledger"
	"assembly-ledger/pkg/logger"
	"assembly-ledger/pkg/replication"
)

func newMirrorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Copy the ledger into the configured Postgres (or Supabase) and MongoDB mirrors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, log, err := ctx.openLedger()
			if err != nil {
				return err
			}
			return mirrorLedger(cmd.Context(), cfg, store, log, cmd.OutOrStdout())
		},
	}
}

func mirrorLedger(ctx context.Context, cfg *config.Config, store *ledger.Store, log logger.Logger, out io.Writer) error {
	if cfg.Mirror.PostgresDSN == "" && cfg.Mirror.SupabaseURL == "" && cfg.Mirror.MongoURI == "" {
		return errors.New("no mirror configured: set mirror.postgres_dsn, mirror.supabase_url or mirror.mongo_uri")
	}

	rc := replication.Config{
		Workers: cfg.Mirror.Workers,
		Logger:  log,
	}

	switch {
	case cfg.Mirror.PostgresDSN != "":
		pg := db.NewPostgresClient(cfg.Mirror)
		if err := pg.Connect(ctx); err != nil {
			return err
		}
		defer pg.Close()
		rc.Postgres = pg
	case cfg.Mirror.SupabaseURL != "":
		sb := db.NewSupabaseClient(cfg.Mirror)
		if err := sb.Connect(ctx); err != nil {
			return err
		}
		defer sb.Close()
		if !sb.HasDirectDB() {
			return errors.New("supabase mirror needs mirror.supabase_db_password for a direct database connection")
		}
		log.Info("Mirroring into Supabase", logger.String("project", cfg.Mirror.SupabaseURL))
		rc.Postgres = sb
	}

	if cfg.Mirror.MongoURI != "" {
		mc := db.NewClient(cfg.Mirror.MongoURI, cfg.Mirror.MongoDatabase, cfg.Mirror.MongoCollection)
		if err := mc.Connect(ctx); err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		defer mc.Close(context.WithoutCancel(ctx))
		rc.Mongo = mc
	}

	replicator, err := replication.NewReplicator(rc)
	if err != nil {
		return err
	}
	res, err := replicator.Replicate(ctx, store.LoadAll())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderTable("Mirror",
		[]string{"Rows", "Sessions", "Postgres written", "Postgres pruned", "Mongo written", "Mongo pruned"},
		[][]string{{
			strconv.Itoa(res.Rows),
			strconv.Itoa(res.Sessions),
			strconv.Itoa(res.PostgresWritten),
			strconv.Itoa(res.PostgresPruned),
			strconv.FormatInt(res.MongoWritten, 10),
			strconv.FormatInt(res.MongoPruned, 10),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}))
	return nil
}
