package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old data (expired sessions, query log entries)",
	RunE:  runCleanup,
}

var (
	cleanupAuditDays int
	cleanupDryRun    bool
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupAuditDays, "audit-days", 180, "Delete query log entries older than N days")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
	cleanupCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/snowview/config.yaml", "Path to configuration file")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if cleanupDryRun {
		fmt.Println("Dry run mode - no data will be deleted")
		fmt.Println()
	}

	ctx := context.Background()

	if err := cleanupSessions(ctx, database); err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}

	auditCutoff := time.Now().AddDate(0, 0, -cleanupAuditDays)
	if err := cleanupQueryLog(ctx, database, auditCutoff); err != nil {
		return fmt.Errorf("failed to cleanup query log: %w", err)
	}

	if !cleanupDryRun {
		fmt.Println("\nCleanup completed")
	}

	return nil
}

func cleanupSessions(ctx context.Context, database *store.DB) error {
	var count int
	err := database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE expires_at <= ?", time.Now(),
	).Scan(&count)
	if err != nil {
		return err
	}

	fmt.Printf("Expired sessions: %d\n", count)

	if !cleanupDryRun && count > 0 {
		sessions := store.NewSessionRepository(database)
		ids, err := sessions.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("  Deleted: %d\n", len(ids))
	}

	return nil
}

func cleanupQueryLog(ctx context.Context, database *store.DB, cutoff time.Time) error {
	var count int
	err := database.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM query_log WHERE created_at < ?", cutoff,
	).Scan(&count)
	if err != nil {
		return err
	}

	fmt.Printf("Query log entries older than %d days: %d\n", cleanupAuditDays, count)

	if !cleanupDryRun && count > 0 {
		audit := store.NewAuditRepository(database)
		deleted, err := audit.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("  Deleted: %d\n", deleted)
	}

	return nil
}
