package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scibuild/scibuild/internal/envgen"
	"github.com/scibuild/scibuild/internal/resolve"
	"github.com/scibuild/scibuild/internal/tpl"
)

var envCmd = &cobra.Command{
	Use:   "env <package[@version]> [variant...]",
	Short: "Print the build environment script a build would source",
	Long: `Env resolves a requirement and prints the generated environment
script without fetching or building anything. TPL library variables are
empty until the dependencies are actually installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	pol, err := loadPolicy()
	if err != nil {
		return err
	}
	res, err := resolve.Resolve(args[0], args[1:], pol)
	if err != nil {
		return err
	}
	s := res.Root.Spec

	arch, err := envgen.KokkosArch(os.Getenv, "zen", s.Variant("accel_target"))
	if err != nil {
		return err
	}

	hostname := s.Variant("ci_hostname")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	collector := tpl.NewCollector(s, tpl.Config{
		StaticDenylist: pol.StaticDenylist,
		WrapGroups:     true,
	})
	envNamer := strings.NewReplacer("-", "", ".", "")
	var tpls []envgen.TPL
	for _, dep := range s.Deps() {
		gathered := collector.Gather([]string{dep.Name})[dep.Name]
		tpls = append(tpls, envgen.TPL{
			EnvName:     strings.ToUpper(envNamer.Replace(dep.Name)),
			Prefix:      dep.Prefix,
			IncludeDirs: gathered.IncludeDirs,
			Libs:        gathered.Libs,
		})
	}

	cfg := &envgen.Config{
		Spec:               s,
		SystemName:         pol.System,
		Hostname:           hostname,
		KokkosArch:         arch,
		TPLs:               tpls,
		Modules:            append(pol.Modules, s.Compiler.Modules...),
		UseNinja:           true,
		CTestParallelLevel: 4,
		BuildCount:         60,
	}
	content, err := cfg.Render()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), content)
	return nil
}
