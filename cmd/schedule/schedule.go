package schedule

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dszqbsm/jobcrawler/cmd/crawl"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "run crawl and backfill on a cron schedule.",
	Long:  "run crawl and backfill once, then again on every tick of schedule.spec until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := crawl.Bootstrap(crawl.ResolveConfigPath(crawl.ConfigPath, cmd.Flags().Changed("config")))
		if err != nil {
			return err
		}
		defer app.Close()

		return Run(ctx, app.Config.Schedule.Spec, app.Logger, func(ctx context.Context) error {
			return app.Run(ctx, crawl.ModeRun)
		})
	},
}

/*
输入上下文、cron表达式、日志器和任务，输出error

启动后立即执行一次，之后按表达式触发；上一次还没结束时跳过本次触发。上下文取消后等待正在执行的任务结束再返回
*/
func Run(ctx context.Context, spec string, logger *zap.Logger, task func(ctx context.Context) error) error {
	logger = logger.Named("schedule")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	c := cron.New(cron.WithLogger(cronLogger))
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := task(ctx); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	}))

	if _, err := c.AddJob(spec, job); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}

	c.Start()
	logger.Info("scheduler started", zap.String("spec", spec))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run()
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	logger.Info("scheduler stopped")
	return nil
}
