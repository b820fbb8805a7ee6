package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
)

func newGuideCommand(ctx *commandContext) *cobra.Command {
	var html bool
	var output string
	cmd := &cobra.Command{
		Use:   "guide <brandId>",
		Short: "Print the brand guide as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				doc, err := client.Guide(cmd.Context(), args[0], html)
				if err != nil {
					return err
				}
				if strings.TrimSpace(output) != "" {
					if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
						return fmt.Errorf("write guide: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
					return nil
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "Render HTML instead of Markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the guide to a file")
	return cmd
}
