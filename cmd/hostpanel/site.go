package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/provision"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage sites",
}

var siteListUser int64

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sites of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			sites, err := a.Services.Sites.List(cmd.Context(), siteListUser)
			if err != nil {
				return err
			}
			w := newTable("ID\tDOMAIN\tPHP\tSSL\tROOT")
			for _, s := range sites {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", s.ID, s.Domain, s.PHPVersion, s.SSL, s.DocumentRoot)
			}
			return w.Flush()
		})
	},
}

var siteReq provision.CreateSiteRequest

var siteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a new site",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			site, err := a.Services.Sites.Create(cmd.Context(), &siteReq)
			if err != nil {
				return err
			}
			fmt.Printf("Site created: id=%d domain=%s root=%s php=%s\n", site.ID, site.Domain, site.DocumentRoot, site.PHPVersion)
			return nil
		})
	},
}

var siteDeleteCmd = &cobra.Command{
	Use:   "delete [site_id]",
	Short: "Delete a site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.Sites.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport("Site", report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(siteCmd)
	siteCmd.AddCommand(siteListCmd, siteCreateCmd, siteDeleteCmd)

	siteListCmd.Flags().Int64VarP(&siteListUser, "owner", "o", 0, "Owner user ID (required)")
	siteListCmd.MarkFlagRequired("owner")

	siteCreateCmd.Flags().Int64VarP(&siteReq.UserID, "owner", "o", 0, "Owner user ID (required)")
	siteCreateCmd.Flags().StringVarP(&siteReq.Domain, "domain", "d", "", "Domain (required)")
	siteCreateCmd.Flags().StringVar(&siteReq.PHPVersion, "php", "", "PHP version (default from config)")
	siteCreateCmd.Flags().BoolVar(&siteReq.SSL, "ssl", false, "Serve over TLS with certificates from the cert dir")
	siteCreateCmd.MarkFlagRequired("owner")
	siteCreateCmd.MarkFlagRequired("domain")
}
