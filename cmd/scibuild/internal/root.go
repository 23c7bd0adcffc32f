package internal

import (
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"

	"github.com/scibuild/scibuild/internal/policy"
)

var (
	flagPolicy   string
	flagPlatform string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "scibuild",
	Short: "scibuild builds the ATDM simulation stack from recipes",
	Long: `scibuild is a source package builder: recipes declare versions,
variants, dependencies and patches; a platform policy pins compilers,
external packages and virtual providers; builds stage, configure and
install under a local store.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetOutputLevel(log.Ldebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPolicy, "policy", "configs/policy.yaml", "platform policy file")
	rootCmd.PersistentFlags().StringVar(&flagPlatform, "platform", "", "platform overlay name (default: detected)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug output")
}

func loadPolicy() (*policy.Policy, error) {
	platform := flagPlatform
	if platform == "" {
		platform = policy.DetectPlatform()
		if !policy.HasOverlay(flagPolicy, platform) {
			platform = ""
		}
	}
	return policy.Load(flagPolicy, platform)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
