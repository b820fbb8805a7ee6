package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"brandkit/internal/api"
	"brandkit/internal/platform"
)

// newPlatformsCommand lists the catalog. The catalog is static, so it is
// served locally when the daemon is down.
func newPlatformsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "platforms",
		Short:       "List supported social platforms and their dimensions",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			platforms := api.FromPlatforms(platform.All())
			if ctx.jsonMode() {
				return writeJSON(cmd, api.PlatformListResponse{Platforms: platforms})
			}
			rows := make([][]string, 0, len(platforms))
			for _, p := range platforms {
				rows = append(rows, []string{p.ID, p.Name, p.AspectRatio, strconv.Itoa(p.Width), strconv.Itoa(p.Height)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Aspect", "Width", "Height"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}
