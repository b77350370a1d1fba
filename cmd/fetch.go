package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/souper/internal/config"
	"github.com/xkilldash9x/souper/internal/observability"
)

// fetchResult is the outcome for one URL.
type fetchResult struct {
	URL     string
	Title   string
	Matches int
	Err     error
}

// newFetchCmd creates the `fetch` command.
func newFetchCmd() *cobra.Command {
	fetchCmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Loads pages concurrently, one browser session per URL",
		Long:  "Loads every URL in its own session and reports the page title and, with --css, how many elements match.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("fetch")

			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			selector, _ := cmd.Flags().GetString("css")
			limit, _ := cmd.Flags().GetInt("concurrency")
			if limit <= 0 {
				limit = cfg.Browser().Concurrency
			}

			results := fetchAll(ctx, cfg, args, selector, limit, logger)
			failed := printFetchResults(cmd.OutOrStdout(), results, selector != "")
			if failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(results))
			}
			return nil
		},
	}
	fetchCmd.Flags().String("css", "", "count elements matching this CSS selector")
	fetchCmd.Flags().IntP("concurrency", "j", 0, "sessions to run at once (overrides browser.concurrency)")
	return fetchCmd
}

// fetchAll visits every URL with at most limit sessions open. A failing URL
// does not stop the others.
func fetchAll(ctx context.Context, cfg config.Interface, urls []string, selector string, limit int, logger *zap.Logger) []fetchResult {
	results := make([]fetchResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = fetchOne(gctx, cfg, u, selector, logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func fetchOne(ctx context.Context, cfg config.Interface, url, selector string, logger *zap.Logger) fetchResult {
	res := fetchResult{URL: url}
	start := time.Now()

	b, err := launchBridge(ctx, cfg, logger)
	if err != nil {
		res.Err = err
		return res
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := b.Close(closeCtx); err != nil {
			logger.Warn("Error closing browser", zap.String("url", url), zap.Error(err))
		}
	}()

	if err := b.Goto(ctx, url); err != nil {
		res.Err = err
		return res
	}
	tree, err := b.Snapshot(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Title = tree.Title()

	if selector != "" {
		handles, err := b.FindElementsByCSSSelector(ctx, selector)
		if err != nil {
			res.Err = err
			return res
		}
		res.Matches = len(handles)
	}

	logger.Debug("Fetched page",
		zap.String("url", url),
		zap.String("session_id", b.SessionID()),
		zap.Duration("duration", time.Since(start)))
	return res
}

func printFetchResults(w io.Writer, results []fetchResult, withMatches bool) (failed int) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(w, "%s\terror: %v\n", r.URL, r.Err)
		case withMatches:
			fmt.Fprintf(w, "%s\t%q\t%d match(es)\n", r.URL, r.Title, r.Matches)
		default:
			fmt.Fprintf(w, "%s\t%q\n", r.URL, r.Title)
		}
	}
	return failed
}
