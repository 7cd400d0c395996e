package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/provision"
)

var dbCmd = &cobra.Command{
	Use:     "db",
	Aliases: []string{"database"},
	Short:   "Manage customer databases",
}

var dbReq provision.CreateDatabaseRequest

var dbCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a database, optionally with a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			db, err := a.Services.Databases.Create(cmd.Context(), &dbReq)
			if err != nil {
				return err
			}
			fmt.Printf("Database created: id=%d name=%s\n", db.ID, db.Name)
			for _, u := range db.Users {
				fmt.Printf("  user %s@%s\n", u.Username, u.Host)
			}
			return nil
		})
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete [database_id]",
	Short: "Drop a database and its users",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.Databases.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport("Database", report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbCreateCmd, dbDeleteCmd)

	dbCreateCmd.Flags().Int64VarP(&dbReq.UserID, "owner", "o", 0, "Owner user ID (required)")
	dbCreateCmd.Flags().StringVarP(&dbReq.Name, "name", "n", "", "Database name (required)")
	dbCreateCmd.Flags().StringVarP(&dbReq.Username, "username", "u", "", "Database user to create")
	dbCreateCmd.Flags().StringVarP(&dbReq.Password, "password", "p", "", "Password of the database user")
	dbCreateCmd.MarkFlagRequired("owner")
	dbCreateCmd.MarkFlagRequired("name")
}
