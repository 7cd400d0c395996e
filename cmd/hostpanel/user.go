package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/provision"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage panel users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			users, err := a.Services.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable("ID\tUSERNAME\tEMAIL\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var userReq provision.CreateUserRequest

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a panel user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			u, err := a.Services.Users.Create(cmd.Context(), &userReq)
			if err != nil {
				return err
			}
			fmt.Printf("User created: id=%d username=%s\n", u.ID, u.Username)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd, userCreateCmd)

	userCreateCmd.Flags().StringVarP(&userReq.Username, "username", "u", "", "Username (required)")
	userCreateCmd.Flags().StringVarP(&userReq.Email, "email", "e", "", "Email (required)")
	userCreateCmd.Flags().StringVarP(&userReq.Password, "password", "p", "", "Password (required)")
	userCreateCmd.Flags().StringVar(&userReq.Role, "role", "user", "Role: admin or user")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")
	userCreateCmd.MarkFlagRequired("password")
}
