package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"review-extractor/internal/types"
)

// printSummary renders the run outcome, plus troubleshooting tips when nothing was kept
func printSummary(out io.Writer, result *types.RunResult, elapsed time.Duration, runErr error) {
	if result == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Company", "Source", "Reviews", "Pages", "Stopped", "Output", "Elapsed"})

	stopped := "-"
	if result.StopReason != "" {
		stopped = fmt.Sprintf("%s (page %d)", result.StopReason, result.StopPage)
	}
	output := result.OutputPath
	if output == "" {
		output = "-"
	}
	t.AppendRow(table.Row{
		result.Company,
		result.Source.DisplayName(),
		len(result.Records),
		result.Pages,
		stopped,
		output,
		elapsed.Round(time.Millisecond),
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(result.Skips) > 0 {
		skips := table.NewWriter()
		skips.SetOutputMirror(out)
		skips.AppendHeader(table.Row{"Skip reason", "Candidates"})
		reasons := make([]string, 0, len(result.Skips))
		for reason := range result.Skips {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			skips.AppendRow(table.Row{reason, result.Skips[reason]})
		}
		skips.SetStyle(table.StyleRounded)
		skips.Render()
	}

	if len(result.Records) == 0 {
		for _, tip := range troubleshootingTips(result, runErr) {
			fmt.Fprintf(out, "  - %s\n", tip)
		}
	}
}

func troubleshootingTips(result *types.RunResult, runErr error) []string {
	tips := []string{"No reviews found. Try:"}

	var resErr *types.ResolutionError
	if errors.As(runErr, &resErr) && len(resErr.Suggestions) > 0 {
		for _, s := range resErr.Suggestions {
			tips = append(tips, fmt.Sprintf("review-extractor --company %q --source %s ...", s, result.Source))
		}
	}

	switch result.Source {
	case types.SourceG2:
		tips = append(tips, "Check the exact company slug on g2.com/products/<slug>")
	case types.SourceCapterra:
		tips = append(tips, "Search the product on capterra.com and use the name shown in the results")
	case types.SourceTrustpilot:
		tips = append(tips, "Use the company domain, e.g. slack.com")
	}
	if result.StopReason == types.StopBlocked {
		tips = append(tips, "The site is blocking requests: use --proxy/--proxy-file or --cloudflare")
	}
	tips = append(tips,
		"Widen the date range",
		"Run with --verbose to see which cards were skipped and why",
		"The site markup may have changed; inspect it with the debug_selectors program",
	)
	return tips
}
