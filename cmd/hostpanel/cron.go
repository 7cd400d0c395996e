package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
	"github.com/panelkit/hostpanel/internal/crontab"
	"github.com/panelkit/hostpanel/internal/provision"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage cron jobs",
}

var cronReq provision.CreateCronJobRequest

var cronCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a cron job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			job, err := a.Services.Cron.Create(cmd.Context(), &cronReq)
			if err != nil {
				return err
			}
			fmt.Printf("Cron job created: id=%d (%s)\n", job.ID, crontab.Describe(job.Schedule))
			return nil
		})
	},
}

var cronDeleteCmd = &cobra.Command{
	Use:   "delete [cron_job_id]",
	Short: "Remove a cron job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(func(a *app.App) error {
			report, err := a.Services.Cron.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			printReport("Cron job", report)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cronCmd)
	cronCmd.AddCommand(cronCreateCmd, cronDeleteCmd)

	cronCreateCmd.Flags().Int64VarP(&cronReq.UserID, "owner", "o", 0, "Owner user ID (required)")
	cronCreateCmd.Flags().StringVarP(&cronReq.Schedule, "schedule", "s", "", "5-field cron schedule (required)")
	cronCreateCmd.Flags().StringVarP(&cronReq.Command, "command", "c", "", "Command to run (required)")
	cronCreateCmd.MarkFlagRequired("owner")
	cronCreateCmd.MarkFlagRequired("schedule")
	cronCreateCmd.MarkFlagRequired("command")
}
