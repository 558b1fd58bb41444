package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/crawler"
	"github.com/JakeFAU/websearch/internal/indexer"
	"github.com/JakeFAU/websearch/internal/schedule"
)

// newServeCmd keeps the health, readiness and metrics endpoints up until
// interrupted, running any scheduled crawl and index jobs meanwhile.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ops endpoints and run scheduled crawl and index jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()

			scheduler, err := newScheduler(appInstance)
			if err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()

			if configured := appInstance.Config().Metrics.Addr; configured != "" && !cmd.Flags().Changed("addr") {
				logger.Info("ops endpoints already served from config", zap.String("addr", configured))
				<-cmd.Context().Done()
				return nil
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           appInstance.OpsHandler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("ops server started", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address (default metrics.addr from config, else :9090)")
	return cmd
}

// newScheduler registers the configured sitemap crawl and pending-index jobs.
func newScheduler(appInstance App) (*schedule.Scheduler, error) {
	cfg := appInstance.Config()
	logger := appInstance.Logger()
	s := schedule.New(logger)

	err := s.Add("crawl", cfg.Schedule.Crawl, func(ctx context.Context) error {
		res, err := appInstance.Crawler().CrawlSitemap(ctx, false, crawler.Options{MaxPages: cfg.Crawler.MaxPages})
		if err != nil {
			return err
		}
		logger.Info("scheduled crawl done",
			zap.String("run_id", res.RunID),
			zap.Int("fetched", res.Fetched),
			zap.Int("failed", res.Failed),
			zap.Int("stored", res.Stored))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.Add("index", cfg.Schedule.Index, func(ctx context.Context) error {
		n, err := appInstance.Indexer().IndexPending(ctx, indexer.Options{MaxPages: cfg.Indexer.MaxPages})
		if err != nil {
			return err
		}
		logger.Info("scheduled index done", zap.Int("indexed", n))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
