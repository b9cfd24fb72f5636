package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
	"github.com/vibast-solutions/ms-go-channel-sync/app/service"
)

var (
	workerMode  bool
	syncChannel string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run marketplace sync commands",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push catalog changes out to marketplace channels",
	Run: func(_ *cobra.Command, _ []string) {
		runSyncCommand("catalog_push", func(engine *service.SyncEngine, ctx context.Context, channelID string) (*entity.SyncLog, error) {
			return engine.PushCatalog(ctx, channelID)
		})
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull external orders in from marketplace channels",
	Run: func(_ *cobra.Command, _ []string) {
		runSyncCommand("order_pull", func(engine *service.SyncEngine, ctx context.Context, channelID string) (*entity.SyncLog, error) {
			return engine.PullOrders(ctx, channelID)
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)

	syncCmd.PersistentFlags().StringVar(&syncChannel, "channel", "", "Run against a single channel id (default: all configured channels)")
	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runSyncCommand(name string, fn func(engine *service.SyncEngine, ctx context.Context, channelID string) (*entity.SyncLog, error)) {
	cfg, app, cleanup := mustCreateApp()
	defer cleanup()

	channels := app.engine.ChannelIDs()
	if syncChannel != "" {
		channels = []string{syncChannel}
	}
	if len(channels) == 0 {
		logrus.WithField("job", name).Fatal("no channels configured")
	}

	runAll := func(ctx context.Context) {
		for _, channelID := range channels {
			runJob(name+"/"+channelID, func() error {
				syncLog, err := fn(app.engine, ctx, channelID)
				if syncLog != nil {
					logrus.WithFields(logrus.Fields{
						"job":       name,
						"channel":   channelID,
						"processed": syncLog.RecordsProcessed,
						"failed":    syncLog.RecordsFailed,
					}).Info("sync_run_recorded")
				}
				return err
			})
		}
	}

	if workerMode {
		runWorker(name, cfg.Sync.Interval, runAll)
		return
	}

	runAll(context.Background())
}

func runWorker(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fn(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
