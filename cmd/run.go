package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/souper/internal/observability"
	"github.com/xkilldash9x/souper/internal/script"
)

// newRunCmd creates the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run SCRIPT.yaml",
		Short: "Runs a YAML script of browser steps",
		Long: `Runs a script of goto, find, send_keys, submit, click, pause,
screenshot and expect_absent steps against one browser session.
A pause step prints its message and waits for Enter, which is the
place to solve a CAPTCHA by hand before the script continues. Written as
{message: ..., if_present: {id: px-captcha}} it only pauses when the
selector matches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			s, err := script.Load(args[0])
			if err != nil {
				return err
			}

			b, err := launchBridge(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if err := b.Close(closeCtx); err != nil {
					logger.Warn("Error closing browser", zap.Error(err))
				}
			}()

			dir, _ := cmd.Flags().GetString("screenshots")
			runner := script.NewRunner(b, script.RunnerConfig{
				In:            cmd.InOrStdin(),
				Out:           cmd.OutOrStdout(),
				ScreenshotDir: dir,
				Logger:        logger,
			})

			results, runErr := runner.Run(ctx, s)
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%3d  %-13s  %s (%s)\n", r.Index, r.Action, r.Detail, r.Duration.Round(time.Millisecond))
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(out, "ok: %d steps\n", len(results))
			return nil
		},
	}
	runCmd.Flags().String("screenshots", "", "directory for relative screenshot paths")
	return runCmd
}
