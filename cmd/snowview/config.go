package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pbelov/snowview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/snowview/config.yaml", "Path to configuration file")
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	authKind := "password"
	if cfg.Warehouse.PrivateKeyPath != "" {
		authKind = "key-pair"
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Warehouse account: %s (%s auth)\n", cfg.Warehouse.Account, authKind)
	fmt.Printf("  Warehouse database: %s\n", cfg.Warehouse.Database)
	fmt.Printf("  Metadata database: %s\n", cfg.Database.Path)
	fmt.Printf("  Auth mode: %s\n", cfg.Auth.Mode)

	if cfg.Auth.Mode == config.AuthModeStatic {
		fmt.Printf("  Static users: %d\n", len(cfg.Auth.Users))
		fmt.Printf("  Static views: %d\n", len(cfg.Views))
		for name, v := range cfg.Views {
			fmt.Printf("    - %s (%s)\n", name, v.Address)
		}
	}

	fmt.Printf("  Floor date: %s\n", cfg.Reporting.FloorDate)
	fmt.Printf("  Preview rows: %d\n", cfg.Reporting.PreviewRows)
	fmt.Printf("  Excel row limit: %d\n", cfg.Reporting.ExcelRowLimit)

	return nil
}
