package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/enrich"
	"github.com/sells-group/contacts-cli/pkg/anthropic"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the backlog of connections from identity data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enrichCfg := cfg.Enrich
		if enrichLimit > 0 {
			enrichCfg.Limit = enrichLimit
		}

		orch := enrich.NewOrchestrator(
			st,
			newMixrankClient(cfg.Mixrank),
			newExaClient(cfg.Exa),
			enrich.NewTagGenerator(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.TagModel),
			enrichCfg,
		)

		report, err := orch.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment run complete",
			zap.Int("selected", report.Selected),
			zap.Int("enriched", report.Enriched),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max records to enrich (default from config)")
	rootCmd.AddCommand(enrichCmd)
}
