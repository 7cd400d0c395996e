package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelkit/hostpanel/internal/app"
)

var phpCmd = &cobra.Command{
	Use:   "php",
	Short: "Inspect PHP runtimes",
}

var phpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed PHP-FPM versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			w := newTable("VERSION\tSERVICE\tBINARY")
			for _, rt := range a.Services.Sites.PHPRuntimes() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", rt.Version, rt.Service, rt.BinaryPath)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(phpCmd)
	phpCmd.AddCommand(phpListCmd)
}
