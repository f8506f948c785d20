package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"review-extractor/extractor"
	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
	"review-extractor/storage"
	"review-extractor/utils"
)

type options struct {
	company     string
	start       string
	end         string
	source      string
	proxy       string
	proxyFile   string
	outputDir   string
	sqlitePath  string
	postgresDSN string
	maxPages    int
	cloudflare  bool
	noDelay     bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "review-extractor",
		Short:         "review-extractor collects dated product reviews from G2, Capterra and Trustpilot.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.company, "company", "", "Company slug (G2), search term (Capterra) or domain (Trustpilot)")
	f.StringVar(&opts.start, "start", "", "Start date, YYYY-MM-DD (inclusive)")
	f.StringVar(&opts.end, "end", "", "End date, YYYY-MM-DD (inclusive)")
	f.StringVar(&opts.source, "source", "", "Review source: g2, capterra or trustpilot")
	f.StringVar(&opts.proxy, "proxy", "", "Single proxy endpoint, e.g. 1.2.3.4:8080")
	f.StringVar(&opts.proxyFile, "proxy-file", "", "File with one proxy endpoint per line")
	f.StringVar(&opts.outputDir, "output-dir", "", "Directory for the JSON output (default from REVIEWS_OUTPUT_DIR or .)")
	f.StringVar(&opts.sqlitePath, "sqlite", "", "Also append records to this SQLite database")
	f.StringVar(&opts.postgresDSN, "postgres-dsn", "", "Also insert records into this PostgreSQL database")
	f.IntVar(&opts.maxPages, "max-pages", 0, "Lower the page ceiling below 10 (default from REVIEWS_MAX_PAGES)")
	f.BoolVar(&opts.cloudflare, "cloudflare", false, "Wrap the transport with the Cloudflare bypass")
	f.BoolVar(&opts.noDelay, "no-delay", false, "Skip the randomized waits between requests")
	f.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	for _, name := range []string{"company", "start", "end", "source"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func run(ctx context.Context, opts *options) error {
	logger := newLogger(opts.verbose)

	config := types.LoadConfig()
	if opts.outputDir != "" {
		config.OutputDir = opts.outputDir
	}
	if opts.maxPages > 0 {
		config.MaxPages = opts.maxPages
	}
	if opts.cloudflare {
		config.CloudflareBypass = true
	}
	if opts.noDelay {
		config.PageDelay = types.DelayRange{}
		config.SearchDelay = types.DelayRange{}
	}

	var proxies []types.ProxyEndpoint
	if opts.proxyFile != "" {
		loaded, err := utils.LoadProxies(opts.proxyFile, logger)
		if err != nil {
			return &types.InputError{Field: "proxy-file", Msg: err.Error(), Err: err}
		}
		proxies = loaded
	} else if opts.proxy != "" {
		proxies = []types.ProxyEndpoint{types.NormalizeProxy(opts.proxy)}
	}

	req, err := types.NewRequest(opts.company, opts.start, opts.end, opts.source, proxies)
	if err != nil {
		logger.Error(err)
		return err
	}

	writer, err := openWriters(config, opts)
	if err != nil {
		logger.Errorf("Failed to open output: %v", err)
		return &types.InputError{Field: "output", Msg: err.Error(), Err: err}
	}
	defer writer.Close()

	m := metrics.New()
	startTime := time.Now()
	result, err := extractor.NewExtractor(config, logger, m, writer).Run(ctx, req)
	if err != nil && types.ExitCode(err) == 0 {
		logger.Errorf("Run completed with errors: %v", err)
	}

	printSummary(os.Stdout, result, time.Since(startTime), err)

	if config.MetricsTextfile != "" {
		if werr := m.WriteTextfile(config.MetricsTextfile); werr != nil {
			logger.Warnf("Failed to write metrics textfile: %v", werr)
		}
	}
	return err
}

func openWriters(config *types.Config, opts *options) (storage.MultiWriter, error) {
	jsonWriter, err := storage.NewJSONWriter(config.OutputDir)
	if err != nil {
		return nil, err
	}
	writers := storage.MultiWriter{jsonWriter}

	if opts.sqlitePath != "" {
		sqliteWriter, err := storage.NewSQLiteWriter(opts.sqlitePath)
		if err != nil {
			writers.Close()
			return nil, err
		}
		writers = append(writers, sqliteWriter)
	}
	if opts.postgresDSN != "" {
		pgWriter, err := storage.NewPostgresWriter(opts.postgresDSN)
		if err != nil {
			writers.Close()
			return nil, err
		}
		writers = append(writers, pgWriter)
	}
	return writers, nil
}

// execute runs cmd and reports flag problems, which cobra raises before RunE, as input errors
func execute(ctx context.Context, cmd *cobra.Command) error {
	ran := false
	runE := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		ran = true
		return runE(c, args)
	}
	err := cmd.ExecuteContext(ctx)
	if err != nil && !ran {
		return &types.InputError{Field: "flags", Msg: err.Error(), Err: err}
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := execute(ctx, newRootCmd())
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(types.ExitCode(err))
}
