package cmd

import (
	"github.com/dszqbsm/jobcrawler/cmd/crawl"
	"github.com/dszqbsm/jobcrawler/cmd/schedule"
	"github.com/dszqbsm/jobcrawler/version"
	"github.com/spf13/cobra"
)

// cmd.go借助cobra库定义了命令行界面：
// crawl只抓取列表并合并入库，backfill只补全完整描述，run依次执行两者，schedule按cron表达式周期执行run，version打印版本信息
// 所有子命令共享--config参数指定的配置文件

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version.",
	Long:  "print version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.Printer(cmd.OutOrStdout())
	},
}

func NewRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "jobcrawler",
		Short:         "crawl job listings into a relational store.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&crawl.ConfigPath, "config", crawl.ConfigPath, "path to the yaml config file")
	rootCmd.AddCommand(crawl.CrawlCmd, crawl.BackfillCmd, crawl.RunCmd, schedule.ScheduleCmd, versionCmd)
	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
