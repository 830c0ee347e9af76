package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run metadata database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/snowview/config.yaml", "Path to configuration file")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
