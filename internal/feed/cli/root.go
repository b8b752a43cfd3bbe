// Package cli is the feed command line: run, gen, import and tail.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
)

type rootFlags struct {
	configPath string
}

// NewRootCmd builds the command tree. Subcommands load config lazily so
// --help works without a config file.
func NewRootCmd() *cobra.Command {
	rf := &rootFlags{}
	root := &cobra.Command{
		Use:          "feed",
		Short:        "Trust-weighted topic feed over an EOA transfer graph",
		SilenceUsage: true,
		Long: `feed scores the addresses around a seed by propagating trust along
transfer edges, then ranks the topics those addresses engaged with,
decayed by age.`,
	}
	root.PersistentFlags().StringVar(&rf.configPath, "config", "", "YAML config file (defaults apply when empty)")

	root.AddCommand(newRunCmd(rf), newGenCmd(rf), newImportCmd(rf), newTailCmd(rf))
	return root
}

func (rf *rootFlags) load() (*config.Config, error) {
	return config.Load(rf.configPath)
}
