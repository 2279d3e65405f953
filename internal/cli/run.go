package cli

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-time-archive/internal/model"
)

func newRunCmd() *cobra.Command {
	var ruleID, tagID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one rule now and print its statistics",
		Example: `  archiver run --rule 3
  archiver run --tag 12`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := ruleKeyFromFlags(ruleID, tagID, cmd.Flags().Changed("rule"), cmd.Flags().Changed("tag"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			record, runErr := application.RunOnce(ctx, key)
			if err := printJSON(cmd, record); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if record.Status == model.RunStatusDeregistered {
				return fmt.Errorf("%s no longer exists and was deregistered", key)
			}

			return nil
		},
	}

	cmd.Flags().Int64Var(&ruleID, "rule", 0, "id of a time rule to run")
	cmd.Flags().Int64Var(&tagID, "tag", 0, "tag id whose tag rules to run")
	cmd.MarkFlagsMutuallyExclusive("rule", "tag")
	cmd.MarkFlagsOneRequired("rule", "tag")

	return cmd
}

func ruleKeyFromFlags(ruleID, tagID int64, ruleSet, tagSet bool) (model.RuleKey, error) {
	switch {
	case ruleSet && tagSet:
		return model.RuleKey{}, fmt.Errorf("%w: --rule and --tag are mutually exclusive", model.ErrInvalidInput)
	case ruleSet:
		if ruleID <= 0 {
			return model.RuleKey{}, fmt.Errorf("%w: --rule must be positive", model.ErrInvalidInput)
		}
		return model.RuleIDKey(ruleID), nil
	case tagSet:
		if tagID <= 0 {
			return model.RuleKey{}, fmt.Errorf("%w: --tag must be positive", model.ErrInvalidInput)
		}
		return model.TagKey(tagID), nil
	default:
		return model.RuleKey{}, fmt.Errorf("%w: one of --rule or --tag is required", model.ErrInvalidInput)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
