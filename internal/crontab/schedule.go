package crontab

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/panelkit/hostpanel/internal/apperr"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a standard 5-field cron expression
func ValidateSchedule(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return apperr.Validation("cron schedule is required")
	}
	if _, err := parser.Parse(expr); err != nil {
		return apperr.Validation("invalid cron schedule: %v", err)
	}
	return nil
}

// ValidateCommand rejects empty, multi-line and obviously destructive commands
func ValidateCommand(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return apperr.Validation("command is required")
	}
	if strings.ContainsAny(cmd, "\n\r") {
		return apperr.Validation("command must be a single line")
	}
	if strings.HasPrefix(cmd, "#") {
		return apperr.Validation("command must not be a comment")
	}

	dangerousPatterns := []string{
		"rm -rf /",
		"dd if=",
		"> /dev/sd",
		"mkfs",
		":(){:|:&};:",
	}

	cmdLower := strings.ToLower(cmd)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(cmdLower, pattern) {
			return apperr.Validation("command contains potentially dangerous pattern")
		}
	}
	return nil
}

// NextRun returns the next activation of expr after from
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// Describe returns a human-readable description of a cron expression
func Describe(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}

	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]
	daily := dom == "*" && month == "*" && dow == "*"

	switch {
	case minute == "*" && hour == "*" && daily:
		return "Every minute"
	case minute == "0" && hour == "0" && daily:
		return "Every day at midnight"
	case minute == "0" && hour == "0" && dom == "*" && month == "*" && dow == "0":
		return "Every Sunday at midnight"
	case minute == "0" && hour == "0" && dom == "1" && month == "*" && dow == "*":
		return "First day of every month at midnight"
	}

	if n, ok := step(minute); ok && hour == "*" && daily {
		return fmt.Sprintf("Every %d minutes", n)
	}
	if n, ok := step(hour); ok && minute == "0" && daily {
		return fmt.Sprintf("Every %d hours", n)
	}
	if h, ok := number(hour); ok && minute == "0" && daily {
		ampm := "AM"
		display := h
		if h >= 12 {
			ampm = "PM"
			if h > 12 {
				display = h - 12
			}
		}
		if h == 0 {
			display = 12
		}
		return fmt.Sprintf("Every day at %d:00 %s", display, ampm)
	}
	if m, ok := number(minute); ok && hour == "*" && daily {
		return fmt.Sprintf("Every hour at minute %d", m)
	}

	return fmt.Sprintf("Schedule: %s", expr)
}

var (
	numberPattern = regexp.MustCompile(`^\d+$`)
	stepPattern   = regexp.MustCompile(`^\*/(\d+)$`)
)

func number(s string) (int, bool) {
	if !numberPattern.MatchString(s) {
		return 0, false
	}
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n, true
}

func step(s string) (int, bool) {
	m := stepPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return number(m[1])
}
