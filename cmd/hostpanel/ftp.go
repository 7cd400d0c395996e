package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/provision"
)

var ftpCmd = &cobra.Command{
	Use:   "ftp",
	Short: "Manage FTP accounts",
}

var ftpReq provision.CreateFTPUserRequest

var ftpCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an FTP account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			account, err := a.Services.FTP.Create(cmd.Context(), &ftpReq)
			if err != nil {
				return err
			}
			fmt.Printf("FTP account created: id=%d username=%s home=%s\n", account.ID, account.Username, account.HomeDir)
			return nil
		})
	},
}

var ftpDeleteCmd = &cobra.Command{
	Use:   "delete [ftp_user_id]",
	Short: "Delete an FTP account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.FTP.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport("FTP account", report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(ftpCmd)
	ftpCmd.AddCommand(ftpCreateCmd, ftpDeleteCmd)

	ftpCreateCmd.Flags().Int64VarP(&ftpReq.UserID, "owner", "o", 0, "Owner user ID (required)")
	ftpCreateCmd.Flags().StringVarP(&ftpReq.Username, "username", "u", "", "FTP username (required)")
	ftpCreateCmd.Flags().StringVarP(&ftpReq.Password, "password", "p", "", "FTP password (required)")
	ftpCreateCmd.Flags().StringVar(&ftpReq.HomeDir, "home", "", "Home directory (default: owner directory)")
	ftpCreateCmd.MarkFlagRequired("owner")
	ftpCreateCmd.MarkFlagRequired("username")
	ftpCreateCmd.MarkFlagRequired("password")
}
