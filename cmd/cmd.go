package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ikawaha/tilescale/internal/logging"
)

const commandName = "tilescale"

// Run executes the tilescale command with args.
func Run(ctx context.Context, version string, args []string) error {
	root := NewRoot(ctx, version)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRoot returns the root command.
func NewRoot(ctx context.Context, version string) *cobra.Command {
	var logFile io.Closer
	cmd := &cobra.Command{
		Use:           commandName,
		Short:         "tiled image super-resolution",
		Long:          "Upscales images tile by tile with a super-resolution model or an interpolation kernel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			logPath, _ := cmd.Flags().GetString("log-file")

			var level slog.Level
			levelErr := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
			if levelErr != nil {
				level = slog.LevelInfo
			}
			w := cmd.ErrOrStderr()
			if logPath != "" {
				f := logging.RotatingFile(logPath)
				logFile = f
				w = f
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))
			if levelErr != nil {
				slog.WarnContext(ctx, "invalid log level, defaulting to INFO", "level", logLevel, "error", levelErr)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			printCommandTree(cmd.OutOrStdout(), cmd, 0)
			return nil
		},
	}
	cmd.AddCommand(
		NewVersionCmd(version),
		NewUpscaleCmd(ctx),
		NewPlanCmd(),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.Bool("log-json", false, "emit logs as JSON")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	return cmd
}

func printCommandTree(w io.Writer, cmd *cobra.Command, indent int) {
	fmt.Fprintln(w, strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(w, subCmd, indent+1)
	}
}

// NewVersionCmd prints the build version.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
