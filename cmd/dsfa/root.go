package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "dsfa",
		Short:         "数据集图像/mask 格式调整工具",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&ctx.configFlag, "config", "c", "", "配置文件路径（默认读取当前目录下的 dsfa.toml）")
	pf.StringVar(&ctx.cli.Root, "root", "", "数据集目录（包含 images/ annotations/ lst/）")
	pf.IntVar(&ctx.cli.Workers, "workers", 0, "并发转换的 worker 数（默认 4）")
	pf.StringVar(&ctx.cli.LogLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&ctx.cli.LogFormat, "log-format", "", "日志格式：console|json")
	pf.BoolVar(&ctx.jsonFlag, "json", false, "stdout 只输出 JSON 报告（stdout 非终端时自动开启）")

	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newManifestCommand(ctx))
	rootCmd.AddCommand(newPackageCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newInspectCommand(ctx))

	return rootCmd
}
