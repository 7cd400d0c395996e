package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/provision"
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Manage DNS zones",
}

var zoneReq provision.CreateZoneRequest

var zoneCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a DNS zone for a site",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			zone, err := a.Services.Zones.Create(cmd.Context(), &zoneReq)
			if err != nil {
				return err
			}
			fmt.Printf("Zone created: id=%d name=%s records=%d\n", zone.ID, zone.Name, len(zone.Records))
			return nil
		})
	},
}

var zoneDeleteCmd = &cobra.Command{
	Use:   "delete [zone_id]",
	Short: "Delete a DNS zone and its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.Zones.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport("Zone", report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(zoneCmd)
	zoneCmd.AddCommand(zoneCreateCmd, zoneDeleteCmd)

	zoneCreateCmd.Flags().Int64Var(&zoneReq.SiteID, "site", 0, "Site ID (required)")
	zoneCreateCmd.Flags().StringVarP(&zoneReq.Domain, "domain", "d", "", "Zone name (required)")
	zoneCreateCmd.Flags().StringVar(&zoneReq.ServerIP, "ip", "", "Server IPv4 for the default A and www records")
	zoneCreateCmd.MarkFlagRequired("site")
	zoneCreateCmd.MarkFlagRequired("domain")
}
