package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uadcheck/uadcheck/pkg/config"
	"github.com/uadcheck/uadcheck/pkg/logger"
)

// errValidationFailed signals a completed run whose overall status is fail;
// it maps to exit code 1 without an error banner.
var errValidationFailed = errors.New("validation failed")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "uadcheck",
		Short:         "Validate UAD 1004 appraisal extractions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewLogger(&logger.Config{
				Level: logger.LogLevel(cfg.LogLevel),
				JSON:  cfg.LogJSON,
			})
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			ctx = contextWithConfig(ctx, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}
	cmd.AddCommand(newValidateCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errValidationFailed) {
			return 1
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	return 0
}
