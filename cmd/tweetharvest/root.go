package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tweetharvest/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootOptions holds flags shared by every command
type rootOptions struct {
	configFile string
	logLevel   string
}

// newRootCmd builds the command tree. Called without a subcommand it runs a search.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	search := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "tweetharvest",
		Short: "Harvest full-archive Twitter search results into NDJSON files",
		Long: `tweetharvest pages through the Twitter v2 full-archive search endpoint and
writes every record twice: the complete record under complete/ and the text
alone under text_only/.

The bearer token is read from the configuration, a .env file, the
BEARER_TOKEN or TWEETHARVEST_BEARER_TOKEN variables, or the system keyring
(see 'tweetharvest auth set').`,
		Example: `  # Collect 4000 German-language building posts into twitter_data.jsonl
  tweetharvest -q "(neubau OR hochhaus) lang:de -is:retweet"

  # Collect 1200 records for a custom window with overlapped writes
  tweetharvest search -q "from:golang" -r 1200 -s 2021-01-01T00:00:00Z --pipeline`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./.tweetharvest.yaml or $HOME/.config/tweetharvest/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error, disabled)")
	bindSearchFlags(cmd.Flags(), search)

	cmd.SetVersionTemplate(`tweetharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		ui.NewPrinter(os.Stderr).PrintError("tweetharvest failed", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tweetharvest %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", buildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
