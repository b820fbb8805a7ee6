package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/logging"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var platformID, prompt, copyText, contentType string
	var duration int
	cmd := &cobra.Command{
		Use:   "generate <brandId>",
		Short: "Generate an on-brand image or video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				ctx.log().Info("requesting generation",
					logging.String(logging.FieldBrandID, args[0]),
					logging.String("platform", platformID),
					logging.String("content_type", contentType),
				)
				asset, err := client.Generate(cmd.Context(), api.GenerateRequest{
					BrandID:         args[0],
					PlatformID:      platformID,
					Prompt:          prompt,
					CopyText:        copyText,
					ContentType:     contentType,
					DurationSeconds: duration,
				})
				if err != nil {
					return err
				}
				return printAsset(cmd, ctx, asset)
			})
		},
	}
	cmd.Flags().StringVar(&platformID, "platform", "", "Target platform id (see `brandkit platforms`)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "What the asset should show")
	cmd.Flags().StringVar(&copyText, "copy-text", "", "Caption drawn in the lower third in the brand text color")
	cmd.Flags().StringVar(&contentType, "type", "image", "Content type: image or video")
	cmd.Flags().IntVar(&duration, "duration", 0, "Video length in seconds (default from config)")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect generated assets",
	}

	var brandID string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List generated assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				assets, err := client.Assets(cmd.Context(), brandID)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, api.AssetListResponse{Assets: assets})
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets found")
					return nil
				}
				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						a.ID,
						a.BrandID,
						a.ContentType,
						a.PlatformID,
						fmt.Sprintf("%dx%d", a.Width, a.Height),
						durationLabel(a),
						relativeTime(a.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Brand", "Type", "Platform", "Size", "Length", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&brandID, "brand", "", "Only list assets for this brand")
	assetsCmd.AddCommand(listCmd)

	assetsCmd.AddCommand(&cobra.Command{
		Use:   "show <assetId>",
		Short: "Show one asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				asset, err := client.Asset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printAsset(cmd, ctx, asset)
			})
		},
	})
	return assetsCmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format, quality, output string
	cmd := &cobra.Command{
		Use:   "export <assetId>",
		Short: "Export an asset in a download format and quality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				variant, err := client.Download(cmd.Context(), args[0], format, quality)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if strings.TrimSpace(output) == "" {
					if ctx.jsonMode() {
						return writeJSON(cmd, variant)
					}
					fmt.Fprintf(out, "%s %s (%s) ready at %s\n", variant.Format, variant.Quality, byteSize(variant.SizeBytes), variant.URL)
					return nil
				}
				target := output
				if info, err := os.Stat(target); err == nil && info.IsDir() {
					target = filepath.Join(target, fmt.Sprintf("%s-%s.%s", variant.AssetID, variant.Quality, variant.Format))
				}
				written, err := fetchToFile(cmd, client, variant.URL, target)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, map[string]any{"variant": variant, "path": target, "bytes": written})
				}
				fmt.Fprintf(out, "Wrote %s (%s)\n", target, byteSize(written))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Download format: png, jpg, webp, pdf for images; mp4, mov, webm for videos (default: the asset's own)")
	cmd.Flags().StringVar(&quality, "quality", "hd", "Quality: hd or 4k")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the file to this path or directory")
	return cmd
}

// fetchToFile streams a daemon URL into path through a temp file so a failed
// download never leaves a truncated target behind.
func fetchToFile(cmd *cobra.Command, client *api.Client, url, path string) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".brandkit-export-*")
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	written, err := client.Fetch(cmd.Context(), url, tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write output: %w", err)
	}
	return written, nil
}

func printAsset(cmd *cobra.Command, ctx *commandContext, a api.ContentAsset) error {
	if ctx.jsonMode() {
		return writeJSON(cmd, a)
	}
	renderAsset(cmd.OutOrStdout(), a, shouldColorize(cmd.OutOrStdout()))
	return nil
}

func renderAsset(out io.Writer, a api.ContentAsset, colorize bool) {
	lines := renderSectionHeader("Asset "+a.ID, colorize)
	lines = append(lines,
		renderStatusLine("Brand", statusInfo, a.BrandID, colorize),
		renderStatusLine("Type", statusInfo, a.ContentType, colorize),
		renderStatusLine("Platform", statusInfo, fmt.Sprintf("%s (%dx%d)", a.PlatformID, a.Width, a.Height), colorize),
	)
	if a.ContentType == "video" {
		lines = append(lines, renderStatusLine("Length", statusInfo, durationLabel(a), colorize))
	}
	lines = append(lines,
		renderStatusLine("Prompt", statusInfo, a.Prompt, colorize),
		renderStatusLine("Provider", statusInfo, a.Provider, colorize),
		renderStatusLine("File", statusOK, a.FinalURL, colorize),
		renderStatusLine("Created", statusInfo, relativeTime(a.CreatedAt), colorize),
	)
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func durationLabel(a api.ContentAsset) string {
	if a.DurationSeconds <= 0 {
		return "-"
	}
	return strconv.Itoa(a.DurationSeconds) + "s"
}
