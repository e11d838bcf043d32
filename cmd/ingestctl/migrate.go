package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"job-ingest/internal/config"
	"job-ingest/internal/database/migration"
	dbpostgres "job-ingest/internal/database/postgres"

	"github.com/spf13/cobra"
)

var (
	migrateDir    string
	migrateStatus bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending postgres migrations",
	Long:  "Reads the same DB_* environment as the server. Uses the embedded migrations unless --dir is given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "postgres" {
			return errors.New("migrate only applies to DB_DRIVER=postgres; sqlite creates its schema on open")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		db, err := dbpostgres.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		dir := migrateDir
		if dir == "" {
			dir = cfg.Database.MigrationsDir
		}
		r := migration.Runner{Dir: dir, Logger: log.New(os.Stdout, "", log.LstdFlags)}
		if migrateStatus {
			states, err := r.Status(ctx, db.SQLDB())
			if err != nil {
				return err
			}
			printMigrationStates(cmd.OutOrStdout(), states)
			return nil
		}
		return r.Run(ctx, db.SQLDB())
	},
}

func printMigrationStates(w io.Writer, states []migration.State) {
	for _, st := range states {
		applied := "pending"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "V%-4d %-32s %s\n", st.Version, st.Name, applied)
	}
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "directory of V*.sql files")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "list migrations and when each was applied")
}
