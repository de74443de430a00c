package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/fetcher"
)

var (
	importFilePath string
	importSheet    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import connections from a spreadsheet export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		conns, err := fetcher.ReadConnections(importFilePath, fetcher.XLSXOptions{
			SheetName: importSheet,
		})
		if err != nil {
			return eris.Wrap(err, "read spreadsheet")
		}
		if len(conns) == 0 {
			zap.L().Warn("no importable rows found", zap.String("file", importFilePath))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		imported, err := st.ImportConnections(ctx, conns)
		if err != nil {
			return eris.Wrap(err, "import connections")
		}

		zap.L().Info("import complete",
			zap.Int("rows", len(conns)),
			zap.Int64("imported", imported),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to XLSX file (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
