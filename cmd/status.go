package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the enrichment backlog size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pending, err := st.CountUnenriched(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		fmt.Printf("Unenriched connections: %d\n", pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
