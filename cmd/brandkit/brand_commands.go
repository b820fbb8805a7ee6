package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/logging"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		name   string
	)
	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract a brand profile from a website",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				profile, err := client.Extract(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				if follow {
					if err := followExtraction(cmd, ctx, client, profile.ID); err != nil {
						return err
					}
					profile, err = client.Brand(cmd.Context(), profile.ID)
					if err != nil {
						return err
					}
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, profile)
				}
				if !follow {
					fmt.Fprintf(cmd.OutOrStdout(), "Extraction started for %s (brand %s)\n", profile.SourceURL, profile.ID)
					return nil
				}
				renderBrand(cmd.OutOrStdout(), profile, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Wait for the extraction and print progress")
	cmd.Flags().StringVar(&name, "name", "", "Brand name to use instead of the page title")
	return cmd
}

// followExtraction long-polls progress events until the extraction reaches
// a terminal stage.
func followExtraction(cmd *cobra.Command, ctx *commandContext, client *api.Client, brandID string) error {
	out := cmd.ErrOrStderr()
	if ctx.jsonMode() {
		out = io.Discard
	}
	var since uint64
	for {
		resp, err := client.Events(cmd.Context(), brandID, api.EventsQuery{Since: since, Follow: true})
		if err != nil {
			return err
		}
		ctx.log().Debug("polled extraction events",
			logging.String(logging.FieldBrandID, brandID),
			logging.Int("count", len(resp.Events)),
		)
		since = resp.Next
		for _, evt := range resp.Events {
			if evt.Task != "extraction" {
				continue
			}
			line := fmt.Sprintf("%3d%%  %-18s %s", evt.Percent, evt.Stage, evt.Message)
			fmt.Fprintln(out, strings.TrimRight(line, " "))
			switch evt.Stage {
			case "complete":
				return nil
			case "error":
				if evt.Kind != "" {
					return fmt.Errorf("extraction failed: %s: %s", evt.Kind, evt.Message)
				}
				return fmt.Errorf("extraction failed: %s", evt.Message)
			}
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
	}
}

func newBrandsCommand(ctx *commandContext) *cobra.Command {
	brandsCmd := &cobra.Command{
		Use:   "brands",
		Short: "Inspect and manage brand profiles",
	}
	brandsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List brand profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				brands, err := client.Brands(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.BrandListResponse{Brands: brands})
				}
				out := cmd.OutOrStdout()
				if len(brands) == 0 {
					fmt.Fprintln(out, "No brands yet. Run `brandkit extract <url>` to add one.")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(brands))
				for _, b := range brands {
					rows = append(rows, []string{
						b.ID,
						b.Name,
						paint(statusKindColor(extractionKind(b.ExtractionStatus)), b.ExtractionStatus, colorize),
						yesNo(b.Confirmed),
						yesNo(b.Logo != nil),
						relativeTime(b.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Confirmed", "Logo", "Created"},
					rows, nil,
				))
				return nil
			})
		},
	})
	brandsCmd.AddCommand(&cobra.Command{
		Use:   "show <brandId>",
		Short: "Show one brand profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				profile, err := client.Brand(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printBrand(cmd, ctx, profile)
			})
		},
	})
	brandsCmd.AddCommand(&cobra.Command{
		Use:   "confirm <brandId>",
		Short: "Mark an extracted profile as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				profile, err := client.Confirm(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printBrand(cmd, ctx, profile)
			})
		},
	})
	brandsCmd.AddCommand(&cobra.Command{
		Use:   "cancel <brandId>",
		Short: "Cancel a running extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.CancelExtraction(cmd.Context(), args[0]); err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"id": args[0], "canceled": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for brand %s\n", args[0])
				return nil
			})
		},
	})
	var follow bool
	retryCmd := &cobra.Command{
		Use:   "retry <brandId>",
		Short: "Restart a failed extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				profile, err := client.RetryExtraction(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if follow {
					if err := followExtraction(cmd, ctx, client, profile.ID); err != nil {
						return err
					}
					if profile, err = client.Brand(cmd.Context(), profile.ID); err != nil {
						return err
					}
				}
				return printBrand(cmd, ctx, profile)
			})
		},
	}
	retryCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Wait for the extraction and print progress")
	brandsCmd.AddCommand(retryCmd)
	return brandsCmd
}

func printBrand(cmd *cobra.Command, ctx *commandContext, profile api.BrandProfile) error {
	if ctx.jsonMode() {
		return writeJSON(cmd, profile)
	}
	renderBrand(cmd.OutOrStdout(), profile, shouldColorize(cmd.OutOrStdout()))
	return nil
}

func renderBrand(out io.Writer, p api.BrandProfile, colorize bool) {
	lines := renderSectionHeader(fmt.Sprintf("%s (%s)", p.Name, p.ID), colorize)
	lines = append(lines,
		renderStatusLine("Source", statusInfo, p.SourceURL, colorize),
		renderStatusLine("Extraction", extractionKind(p.ExtractionStatus), p.ExtractionStatus, colorize),
	)
	if p.ExtractionError != nil {
		lines = append(lines, renderStatusLine("Error", statusError,
			fmt.Sprintf("%s: %s", p.ExtractionError.Kind, p.ExtractionError.Message), colorize))
	}
	confirmed := statusWarn
	if p.Confirmed {
		confirmed = statusOK
	}
	lines = append(lines, renderStatusLine("Confirmed", confirmed, yesNo(p.Confirmed), colorize))
	if p.Logo != nil {
		lines = append(lines, renderStatusLine("Logo", statusOK,
			fmt.Sprintf("%dx%d %s, %s, opacity %.2f", p.Logo.Width, p.Logo.Height, p.Logo.Position, p.Logo.Size, p.Logo.Opacity), colorize))
	} else {
		lines = append(lines, renderStatusLine("Logo", statusWarn, "not configured", colorize))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))

	if p.ExtractionStatus != "complete" {
		return
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Role", "Value"},
		[][]string{
			{"Primary", p.Colors.Primary},
			{"Secondary", p.Colors.Secondary},
			{"Accent", p.Colors.Accent},
			{"Background", p.Colors.Background},
			{"Text", p.Colors.Text},
			{"Heading font", fmt.Sprintf("%s %d", p.Typography.HeadingFont, p.Typography.HeadingWeight)},
			{"Body font", fmt.Sprintf("%s %d", p.Typography.BodyFont, p.Typography.BodyWeight)},
			{"Tone", p.Tone},
			{"Industry", p.Industry},
			{"Keywords", strings.Join(p.Keywords, ", ")},
		},
		nil,
	))
}
