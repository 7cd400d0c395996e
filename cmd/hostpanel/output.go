package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/panelkit/hostpanel/internal/apperr"
)

func newTable(header string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	return w
}

// printReport prints the outcome of each cleanup step of a delete
func printReport(what string, report *apperr.RollbackReport) {
	fmt.Printf("%s deleted\n", what)
	if report == nil {
		return
	}
	for _, step := range report.Steps {
		status := "ok"
		if !step.OK {
			status = "FAILED: " + step.Error
		}
		fmt.Printf("  %-28s %s\n", step.Name, status)
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
