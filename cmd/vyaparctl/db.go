package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"vyapar-go/internal/repository"
	"vyapar-go/pkg/database"
)

var (
	usersPage     int
	usersPageSize int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users, password_reset_tokens and chat_history tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect registered accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered accounts",
	RunE:  runUsersList,
}

func init() {
	usersListCmd.Flags().IntVar(&usersPage, "page", 1, "Page number, starting at 1")
	usersListCmd.Flags().IntVar(&usersPageSize, "size", 20, "Accounts per page")
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(migrateCmd, usersCmd)
}

func openDB() (*gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return database.Open(cfg.Database.Driver, cfg.Database.DSN)
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	if usersPage < 1 || usersPageSize < 1 {
		return fmt.Errorf("page and size must be positive")
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	users, total, err := repository.NewUserRepository(db).FindWithPagination((usersPage-1)*usersPageSize, usersPageSize)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tREGISTERED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.FullName(), u.Email, humanize.Time(u.CreatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s accounts in total\n", humanize.Comma(total))
	return nil
}
