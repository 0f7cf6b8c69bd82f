package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/outreach"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run <notification text>",
	Short: "Process a single new-customer notification",
	Example: `  outreach-cli run "Customer email: alice@acme.xyz
Customer description: Alice Smith"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		opts := pipelineOptions{DryRun: runDryRun}
		if cfg.Compose.SendImmediately || runDryRun {
			opts.Preview = cmd.OutOrStdout()
		}

		env, err := initPipeline(ctx, cfg, opts)
		if err != nil {
			return err
		}

		out := env.Pipeline.Process(ctx, args[0])
		logOutcome(out)

		// A failed run is reported through the audit path, not the exit code.
		return nil
	},
}

func logOutcome(out outreach.Outcome) {
	fields := []zap.Field{
		zap.String("run_id", out.RunID),
		zap.String("status", string(out.Status)),
		zap.Bool("audited", out.Audited),
	}
	if out.Company != nil {
		fields = append(fields, zap.Bool("company_found", !out.Company.IsZero()))
	}
	switch out.Status {
	case model.AuditSuccess:
		zap.L().Info("email scheduled successfully", fields...)
	case model.AuditSkipped:
		zap.L().Info("run skipped", append(fields, zap.String("reason", out.Reason))...)
	default:
		zap.L().Error("failed to schedule email", append(fields, zap.Error(out.Err))...)
	}
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the composed email and skip dispatch")
	rootCmd.AddCommand(runCmd)
}
