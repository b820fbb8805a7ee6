package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/logging"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				resp, err := client.Logs(cmd.Context(), api.LogQuery{Tail: true, Limit: lines})
				if err != nil {
					return err
				}
				if err := printLogEvents(cmd, ctx, out, resp.Events, colorize); err != nil {
					return err
				}
				for follow {
					resp, err = client.Logs(cmd.Context(), api.LogQuery{Since: resp.Next, Follow: true})
					if err != nil {
						if cmd.Context().Err() != nil {
							return nil
						}
						return err
					}
					if err := printLogEvents(cmd, ctx, out, resp.Events, colorize); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	return cmd
}

func printLogEvents(cmd *cobra.Command, ctx *commandContext, out io.Writer, events []logging.LogEvent, colorize bool) error {
	for _, evt := range events {
		if ctx.jsonMode() {
			if err := writeJSON(cmd, evt); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(out, formatLogEvent(evt, colorize))
	}
	return nil
}

func formatLogEvent(evt logging.LogEvent, colorize bool) string {
	level := strings.ToUpper(evt.Level)
	var attr color.Attribute
	switch level {
	case "ERROR":
		attr = color.FgRed
	case "WARN":
		attr = color.FgYellow
	case "DEBUG":
		attr = color.FgHiBlack
	default:
		attr = color.FgBlue
	}
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(paint(attr, fmt.Sprintf("%-5s", level), colorize))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	if evt.BrandID != "" {
		b.WriteString(" brand=" + evt.BrandID)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)
	for _, d := range evt.Details {
		b.WriteString("\n    - " + d.Label + ": " + d.Value)
	}
	return b.String()
}
