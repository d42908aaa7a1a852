package crawl

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ConfigPath 由根命令的--config参数填充
var ConfigPath = "config.yaml"

var CrawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "crawl listings and reconcile them into the store.",
	Long:  "crawl every configured country and keyword, then insert new jobs and update known ones.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Execute(cmd, ModeCrawl)
	},
}

var BackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "fetch verbose descriptions of stored jobs.",
	Long:  "fetch the detail page of jobs that have no verbose description yet, in batches.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Execute(cmd, ModeBackfill)
	},
}

var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "crawl then backfill.",
	Long:  "crawl then backfill.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Execute(cmd, ModeRun)
	},
}

// Execute 收到SIGINT或SIGTERM时取消上下文，浏览器会话随之关闭
func Execute(cmd *cobra.Command, mode Mode) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Bootstrap(ResolveConfigPath(ConfigPath, cmd.Flags().Changed("config")))
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx, mode)
}
