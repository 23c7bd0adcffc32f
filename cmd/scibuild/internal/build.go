package internal

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/scibuild/scibuild/internal/build"
	"github.com/scibuild/scibuild/internal/resolve"
)

var buildRunTests bool

var buildCmd = &cobra.Command{
	Use:   "build <package[@version]> [variant...]",
	Short: "Build a package and its dependencies",
	Long: `Build resolves a package requirement against the platform policy,
builds its dependencies in order and then the package itself. Variant
selections may follow the requirement:

  scibuild build atdm-trilinos@13.0.1 exec_space=openmp ~tests`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildRunTests, "run-tests", false, "run package test suites after building")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	pol, err := loadPolicy()
	if err != nil {
		return err
	}
	res, err := resolve.Resolve(args[0], args[1:], pol)
	if err != nil {
		return err
	}

	builder, err := build.NewBuilder()
	if err != nil {
		return err
	}
	builder.RunTests = buildRunTests

	deps := make([]*build.Target, 0, len(res.Order)-1)
	for _, n := range res.Order[:len(res.Order)-1] {
		deps = append(deps, &build.Target{Recipe: n.Recipe, Spec: n.Spec})
	}
	main := &build.Target{Recipe: res.Root.Recipe, Spec: res.Root.Spec}
	return builder.Build(context.Background(), main, deps)
}
