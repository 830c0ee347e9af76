package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/warehouse"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "View registry and permission commands (database auth mode)",
}

var viewAddCmd = &cobra.Command{
	Use:   "add [name] [address]",
	Short: "Register a warehouse view",
	Long:  `Register a view under a display name. The address is the schema-qualified object name without the database prefix, e.g. REPORTING.CAMPAIGN_DELIVERY_V.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runViewAdd,
}

var viewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered views",
	RunE:  runViewList,
}

var viewRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a view and its grants",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewRemove,
}

var viewGrantCmd = &cobra.Command{
	Use:   "grant [email] [view]",
	Short: "Allow a user to query a view",
	Args:  cobra.ExactArgs(2),
	RunE:  runViewGrant,
}

var viewRevokeCmd = &cobra.Command{
	Use:   "revoke [email] [view]",
	Short: "Revoke a user's access to a view",
	Args:  cobra.ExactArgs(2),
	RunE:  runViewRevoke,
}

var viewGrantsCmd = &cobra.Command{
	Use:   "grants [email]",
	Short: "List the views a user may query",
	Args:  cobra.ExactArgs(1),
	RunE:  runViewGrants,
}

func init() {
	viewCmd.AddCommand(viewAddCmd)
	viewCmd.AddCommand(viewListCmd)
	viewCmd.AddCommand(viewRemoveCmd)
	viewCmd.AddCommand(viewGrantCmd)
	viewCmd.AddCommand(viewRevokeCmd)
	viewCmd.AddCommand(viewGrantsCmd)

	viewCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/snowview/config.yaml", "Path to configuration file")
}

func openViews() (*store.DB, *store.ViewRepository, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	database, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return database, store.NewViewRepository(database), nil
}

func runViewAdd(cmd *cobra.Command, args []string) error {
	name, address := args[0], args[1]

	if !warehouse.ValidAddress(address) {
		return fmt.Errorf("invalid view address %q (expected SCHEMA.OBJECT)", address)
	}

	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := views.Create(context.Background(), name, address); err != nil {
		return err
	}

	fmt.Printf("View %q registered at %s\n", name, address)
	return nil
}

func runViewList(cmd *cobra.Command, args []string) error {
	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := views.List(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%-30s  %-40s  %s\n", "Name", "Address", "Created")
	fmt.Println(strings.Repeat("-", 90))
	for _, v := range list {
		fmt.Printf("%-30s  %-40s  %s\n", v.Name, v.Address, v.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runViewRemove(cmd *cobra.Command, args []string) error {
	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := views.Delete(context.Background(), args[0]); err != nil {
		return err
	}

	fmt.Printf("View %q removed\n", args[0])
	return nil
}

func runViewGrant(cmd *cobra.Command, args []string) error {
	email, viewName := args[0], args[1]

	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	user, view, err := lookupGrantPair(ctx, database, views, email, viewName)
	if err != nil {
		return err
	}

	if err := views.Grant(ctx, user, view); err != nil {
		return err
	}

	fmt.Printf("Granted %q to %s\n", viewName, email)
	return nil
}

func runViewRevoke(cmd *cobra.Command, args []string) error {
	email, viewName := args[0], args[1]

	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	user, view, err := lookupGrantPair(ctx, database, views, email, viewName)
	if err != nil {
		return err
	}

	if err := views.Revoke(ctx, user, view); err != nil {
		return err
	}

	fmt.Printf("Revoked %q from %s\n", viewName, email)
	return nil
}

func runViewGrants(cmd *cobra.Command, args []string) error {
	database, views, err := openViews()
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := views.ForUser(context.Background(), args[0])
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Printf("%s has no view grants\n", args[0])
		return nil
	}
	for _, v := range list {
		fmt.Printf("%-30s  %s\n", v.Name, v.Address)
	}
	return nil
}

// lookupGrantPair resolves an email and a view name to their ids.
func lookupGrantPair(ctx context.Context, database *store.DB, views *store.ViewRepository, email, viewName string) (userID, viewID string, err error) {
	users := store.NewUserRepository(database)

	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", fmt.Errorf("user %s not found", email)
	}

	view, err := views.GetByName(ctx, viewName)
	if err != nil {
		return "", "", err
	}
	if view == nil {
		return "", "", fmt.Errorf("view %q not found", viewName)
	}

	return user.ID, view.ID, nil
}
