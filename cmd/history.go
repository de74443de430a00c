package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contacts-cli/internal/model"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <connection-id>",
	Short: "Show the enrichment history of a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		conn, err := st.GetConnection(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history")
		}

		history, err := st.ListEnrichments(ctx, conn.ID)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"connection":  conn,
				"enrichments": history,
			})
		}

		fmt.Printf("%s (%s)\n", conn.FullName, conn.ProfileURL)
		if len(history) == 0 {
			fmt.Fprintln(os.Stderr, "No enrichments recorded.")
			return nil
		}

		formatHistory(os.Stdout, history)
		return nil
	},
}

func formatHistory(out io.Writer, history []model.Enrichment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tCREATED\tTAGS")
	_, _ = fmt.Fprintln(w, "-------\t-------\t----")

	for _, e := range history {
		tags := strings.Join(e.Tags, ", ")
		if len(tags) > 60 {
			tags = tags[:57] + "..."
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n",
			e.Version,
			e.CreatedAt.Format("2006-01-02 15:04"),
			tags,
		)
	}
	_ = w.Flush()
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}
