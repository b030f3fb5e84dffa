package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "consolectl",
		Short: "Administration tasks for the workshop console",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			config.LoadAppConfig().ConfigureLogging()
		},
	}

	rootCmd.AddCommand(
		migrateCmd(),
		createSuperAdminCmd(),
		issueTokenCmd(),
		rolesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	return config.ConnectDatabase()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := config.Migrate(db); err != nil {
				return err
			}
			fmt.Println("Schema up to date")
			return nil
		},
	}
}

func createSuperAdminCmd() *cobra.Command {
	var (
		email    string
		name     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a platform superadmin and close the bootstrap path",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			p, err := createSuperAdmin(context.Background(), db, config.LoadAppConfig(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Printf("Superadmin %s created (%s)\n", p.Email, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("password")

	return cmd
}

func issueTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    string
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a credential for an existing principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			token, err := issueToken(context.Background(), db, config.LoadAppConfig(), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Principal id")
	cmd.Flags().StringVar(&ttl, "ttl", "1h", "Credential lifetime")
	cmd.MarkFlagRequired("user-id")

	return cmd
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print the capabilities granted to each role",
		Run: func(cmd *cobra.Command, args []string) {
			writeRoleTable(cmd.OutOrStdout())
		},
	}
}
