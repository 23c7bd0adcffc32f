package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scibuild/scibuild/recipe"
)

var infoCmd = &cobra.Command{
	Use:   "info <package>",
	Short: "Show a recipe's versions, variants and dependencies",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	r, ok := recipe.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no recipe for %s", args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, r.Name)
	if r.Homepage != "" {
		fmt.Fprintf(out, "  homepage: %s\n", r.Homepage)
	}

	fmt.Fprintln(out, "versions:")
	defaultVersion := r.DefaultVersion()
	for _, v := range r.Versions {
		marker := ""
		if v.Version == defaultVersion {
			marker = " (default)"
		}
		if v.Branch != "" {
			fmt.Fprintf(out, "  %s  [branch %s]%s\n", v.Version, v.Branch, marker)
		} else {
			fmt.Fprintf(out, "  %s%s\n", v.Version, marker)
		}
	}

	if len(r.Variants) > 0 {
		fmt.Fprintln(out, "variants:")
		for _, v := range r.Variants {
			switch {
			case v.Free:
				fmt.Fprintf(out, "  %s=%s\n", v.Name, v.Default)
			case len(v.Values) == 0:
				fmt.Fprintf(out, "  %s  [on/off, default %s]\n", v.Name, v.Default)
			default:
				fmt.Fprintf(out, "  %s  [%s, default %s]\n",
					v.Name, strings.Join(v.Values, "/"), v.Default)
			}
			if v.Description != "" {
				fmt.Fprintf(out, "      %s\n", v.Description)
			}
		}
	}

	if len(r.Dependencies) > 0 {
		fmt.Fprintln(out, "dependencies:")
		for _, d := range r.Dependencies {
			if d.When != "" {
				fmt.Fprintf(out, "  %s  (when %s)\n", d.Spec, d.When)
			} else {
				fmt.Fprintf(out, "  %s\n", d.Spec)
			}
		}
	}
	return nil
}
