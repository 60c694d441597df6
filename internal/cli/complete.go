package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// completeSeries offers series ids (with titles) from the local workspace.
func completeSeries(app *App) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		st, err := app.localStore(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		defer app.close()
		list, err := st.ListSeries(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		var out []string
		for _, sr := range list {
			if strings.HasPrefix(sr.ID, toComplete) {
				out = append(out, sr.ID+"\t"+sr.Title)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
