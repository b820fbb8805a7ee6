package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil && !api.IsUnavailable(err) {
				return ctx.wrapDaemonError(err)
			}
			if err != nil {
				// Daemon down: fall back to local checks.
				status = api.DaemonStatus{
					DatabasePath: cfg.DatabasePath(),
					LockFilePath: cfg.Paths.LockPath,
					Preflight:    preflight.RunAll(cmd.Context(), cfg),
				}
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Daemon", colorize)
			if status.Running {
				uptime := time.Duration(status.UptimeSeconds) * time.Second
				lines = append(lines,
					renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d, up %s)", status.PID, uptime), colorize),
					renderStatusLine("API", statusInfo, cfg.API.Bind, colorize),
				)
			} else {
				lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (start with `brandkitd`)", colorize))
			}
			lines = append(lines,
				renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
				renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize),
			)
			if status.Running {
				active := "none"
				if n := len(status.ActiveExtractions); n > 0 {
					active = strconv.Itoa(n) + ": " + strings.Join(status.ActiveExtractions, ", ")
				}
				lines = append(lines,
					renderStatusLine("Extractions", statusInfo, active, colorize),
					renderStatusLine("Export cache", statusInfo, byteSize(status.CacheBytes), colorize),
				)
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			for _, result := range status.Preflight {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
