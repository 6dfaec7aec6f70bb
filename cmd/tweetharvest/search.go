package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tweetharvest/pkg/auth"
	"tweetharvest/pkg/config"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/manifest"
	"tweetharvest/pkg/metrics"
	"tweetharvest/pkg/paginator"
	"tweetharvest/pkg/ratelimit"
	"tweetharvest/pkg/storage"
	"tweetharvest/pkg/twitter"
	"tweetharvest/pkg/ui"
)

// Replaced in tests so no real keychain is touched
var newAuthManager = auth.NewManager

// searchOptions backs the search flags. Values are read back through the
// flag set so only flags the user changed override the configuration.
type searchOptions struct {
	query       string
	outputFile  string
	outputDir   string
	startDate   string
	endDate     string
	results     int
	fields      string
	pipeline    bool
	pageDelay   time.Duration
	timeout     time.Duration
	metricsFile string
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a full-archive search and write the results",
		Long: `Run a full-archive search and write every record to
<output-dir>/complete/<output-file> and its text to
<output-dir>/text_only/<output-file>.

The result count is split into full pages of 500 and one remainder request.
Collection stops early when the API returns a page without a next token.`,
		Example: `  tweetharvest search -q "climate lang:en" -r 2500 -o climate.jsonl
  tweetharvest search -q "#golang" --output-dir ./data --metrics-file ./data/run.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root)
		},
	}

	bindSearchFlags(cmd.Flags(), opts)
	return cmd
}

func bindSearchFlags(fs *pflag.FlagSet, opts *searchOptions) {
	fs.StringVarP(&opts.query, "query", "q", "", "search query in full-archive search syntax")
	fs.StringVarP(&opts.outputFile, "output-file", "o", "twitter_data.jsonl", "output file name, written under complete/ and text_only/")
	fs.StringVar(&opts.outputDir, "output-dir", ".", "base directory for the output trees")
	fs.StringVarP(&opts.startDate, "start-date", "s", "2020-03-05T00:00:00Z", "inclusive start of the search window (RFC3339)")
	fs.StringVarP(&opts.endDate, "end-date", "e", "2022-03-05T00:00:00Z", "exclusive end of the search window (RFC3339)")
	fs.IntVarP(&opts.results, "results", "r", 4000, "number of records to collect")
	fs.StringVar(&opts.fields, "fields", "author_id,created_at", "comma separated tweet.fields; unmodeled fields are copied verbatim into the complete stream")
	fs.BoolVar(&opts.pipeline, "pipeline", false, "write page k while fetching page k+1")
	fs.DurationVar(&opts.pageDelay, "page-delay", 500*time.Millisecond, "pause before every request after the first")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
}

// changedFlags collects the flags set on the command line, keyed by name
func changedFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "int":
			v, _ := fs.GetInt(f.Name)
			flags[f.Name] = v
		case "bool":
			v, _ := fs.GetBool(f.Name)
			flags[f.Name] = v
		case "duration":
			v, _ := fs.GetDuration(f.Name)
			flags[f.Name] = v
		default:
			flags[f.Name] = f.Value.String()
		}
	})
	delete(flags, "config")
	return flags
}

func runSearch(cmd *cobra.Command, root *rootOptions) error {
	out := ui.NewPrinter(cmd.OutOrStdout())

	cfg, err := config.Load(root.configFile, changedFlags(cmd.Flags()))
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger().WithField("query", cfg.Search.Query)
	log.WithField("version", version).Info("tweetharvest starting")

	cred, err := newAuthManager().Resolve(cfg.API.BearerToken)
	if err != nil {
		auth.ShowTokenGuide(cmd.ErrOrStderr())
		return err
	}
	log.WithField("source", cred.Source).Debug("Bearer token resolved")

	// Validate has already parsed both bounds
	start, _ := cfg.StartTime()
	end, _ := cfg.EndTime()

	collector := metrics.NewCollector()
	client := twitter.NewClientFromConfig(cfg, cred.Token, collector, log)

	// The sink truncates both streams, so report what a previous run left there
	manifests := manifest.NewManager(cfg.ManifestPath(), log)
	if previous, err := manifests.Load(); err != nil {
		log.WithError(err).Warn("Failed to read previous run manifest")
	} else if previous != nil {
		log.WithFields(map[string]interface{}{
			"run_id":  previous.RunID,
			"state":   previous.State,
			"records": previous.Records,
		}).Warn("Overwriting output of a previous run")
		out.PrintWarning(fmt.Sprintf("Overwriting %d records from run %s", previous.Records, previous.RunID))
	}

	sink, err := storage.NewSink(storage.PathsFromConfig(cfg), log)
	if err != nil {
		return err
	}

	pause, window := ratelimit.FromConfig(cfg.RateLimit)
	log.InfoWithFields("Request pacing", map[string]interface{}{
		"page_delay":          pause.Delay(),
		"window_unlimited":    window.Unlimited(),
		"requests_per_window": cfg.RateLimit.RequestsPerWindow,
		"window":              cfg.RateLimit.Window,
	})
	template := twitter.NewSearchRequest(cfg.Search.Query, start, end, cfg.FieldList())
	p := paginator.New(client, sink, template, paginator.Options{
		Target:   cfg.Search.Results,
		PageSize: cfg.API.PageSize,
		Pipeline: cfg.Search.Pipeline,
		Pause:    pause,
		Window:   window,
		Observer: collector,
	}, log)

	out.PrintBanner()
	out.PrintInfo("Query", cfg.Search.Query)
	out.PrintInfo("Window", fmt.Sprintf("%s to %s", cfg.Search.StartTime, cfg.Search.EndTime))
	out.PrintPlan(p.Plan())

	record := manifest.New(cfg)
	summary, runErr := p.Run(context.Background())
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	collector.RunFinished(runErr == nil, summary.Duration)

	if cfg.Output.WriteManifest {
		record.Finish(summary, sink.Records(), runErr)
		if err := manifests.Save(record); err != nil {
			log.WithError(err).Warn("Failed to write run manifest")
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	out.PrintSummary(summary)
	if runErr != nil {
		log.WithError(runErr).Error("Harvest failed")
		return runErr
	}

	out.PrintSuccess(fmt.Sprintf("Wrote %d records to %s", sink.Records(), sink.Paths().Complete))
	return nil
}
