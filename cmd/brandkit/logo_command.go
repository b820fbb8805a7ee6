package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/brand"
)

func newLogoCommand(ctx *commandContext) *cobra.Command {
	logoCmd := &cobra.Command{
		Use:   "logo",
		Short: "Configure brand logos",
	}

	var position, size string
	var opacity float64
	setCmd := &cobra.Command{
		Use:   "set <brandId> <file>",
		Short: "Upload a PNG or JPEG logo and its overlay settings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := brand.ParsePosition(position); err != nil {
				return err
			}
			if _, err := brand.ParseSize(size); err != nil {
				return err
			}
			if err := brand.ValidateOpacity(opacity); err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read logo: %w", err)
			}
			return ctx.withClient(func(client *api.Client) error {
				profile, err := client.UploadLogo(cmd.Context(), args[0], api.LogoUpload{
					Filename: filepath.Base(args[1]),
					Data:     data,
					Position: position,
					Size:     size,
					Opacity:  opacity,
				})
				if err != nil {
					return err
				}
				return printBrand(cmd, ctx, profile)
			})
		},
	}
	setCmd.Flags().StringVar(&position, "position", string(brand.PositionBottomRight), "Logo corner: top-left, top-right, bottom-left, bottom-right, center")
	setCmd.Flags().StringVar(&size, "size", string(brand.SizeMedium), "Logo size: small, medium, large")
	setCmd.Flags().Float64Var(&opacity, "opacity", 1, "Logo opacity between 0 and 1")
	logoCmd.AddCommand(setCmd)
	return logoCmd
}
