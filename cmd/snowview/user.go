package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands (database auth mode)",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  runUserList,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [email]",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password [email]",
	Short: "Reset user password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserResetPassword,
}

var (
	userEmail    string
	userPassword string
	userName     string
)

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "User email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "User password (will prompt if not provided)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "User name")
	userCreateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userResetPasswordCmd)

	userCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/snowview/config.yaml", "Path to configuration file")
}

func openUsers() (*store.DB, *store.UserRepository, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	database, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return database, store.NewUserRepository(database), nil
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	database, users, err := openUsers()
	if err != nil {
		return err
	}
	defer database.Close()

	// Prompt for password if not provided
	password := userPassword
	if password == "" {
		password, err = promptPassword("Enter password: ")
		if err != nil {
			return err
		}
	}

	if len(password) < 10 {
		return fmt.Errorf("password must be at least 10 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := users.Create(context.Background(), userEmail, string(hash), userName); err != nil {
		return err
	}

	fmt.Printf("User %s created successfully\n", userEmail)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	database, users, err := openUsers()
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := users.List(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-30s  %-20s  %s\n", "ID", "Email", "Name", "Created")
	fmt.Println(strings.Repeat("-", 100))

	for _, u := range list {
		fmt.Printf("%-36s  %-30s  %-20s  %s\n",
			u.ID, u.Email, u.Name, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	email := args[0]

	database, users, err := openUsers()
	if err != nil {
		return err
	}
	defer database.Close()

	// Confirm deletion
	fmt.Printf("Are you sure you want to delete user %s? [y/N]: ", email)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))

	if response != "y" && response != "yes" {
		fmt.Println("Cancelled")
		return nil
	}

	if err := users.Delete(context.Background(), email); err != nil {
		return err
	}

	fmt.Printf("User %s deleted\n", email)
	return nil
}

func runUserResetPassword(cmd *cobra.Command, args []string) error {
	email := args[0]

	database, users, err := openUsers()
	if err != nil {
		return err
	}
	defer database.Close()

	password, err := promptPassword("Enter new password: ")
	if err != nil {
		return err
	}

	if len(password) < 10 {
		return fmt.Errorf("password must be at least 10 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := users.UpdatePassword(context.Background(), email, string(hash)); err != nil {
		return err
	}

	fmt.Printf("Password for %s updated successfully\n", email)
	return nil
}

// promptPassword reads a password twice without echo and checks the two
// entries match.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	pwBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	pwBytes2, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(pwBytes2) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}
