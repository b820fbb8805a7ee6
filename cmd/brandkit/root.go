package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "brandkit",
		Short:         "Extract brand identities and generate on-brand content",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print machine-readable JSON")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "CLI log level (debug, info, warn, error)")

	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newBrandsCommand(ctx))
	rootCmd.AddCommand(newLogoCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newAssetsCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newGuideCommand(ctx))
	rootCmd.AddCommand(newPlatformsCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
