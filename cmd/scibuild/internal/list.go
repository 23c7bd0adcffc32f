package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scibuild/scibuild/recipe"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available recipes",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, r := range recipe.All() {
		if r.HasCode {
			fmt.Fprintf(out, "%s@%s\n", r.Name, r.DefaultVersion())
		} else {
			fmt.Fprintf(out, "%s@%s (external only)\n", r.Name, r.DefaultVersion())
		}
	}
	return nil
}
