package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/store/sqlite"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs from the corpus cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Cache.Path == "" {
				return fmt.Errorf("%w: no cache configured (cache.path)", internalerr.ErrInvalidConfig)
			}
			st, err := sqlite.OpenSQLite(cmd.Context(), a.cfg.Cache.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tROWS\tWITH NAMES\tNAMES\tCACHE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%t\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Docs, r.DocsWithNames, r.NamesFound, r.CacheHit)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
