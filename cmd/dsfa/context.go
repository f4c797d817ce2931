package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dsfa/internal/app/run"
	"github.com/John-Robertt/dsfa/internal/config"
	"github.com/John-Robertt/dsfa/internal/logging"
)

// commandContext 保存全局 flag，并按需装配配置、logger 与 Runner。
type commandContext struct {
	configFlag string
	jsonFlag   bool

	// cli 由持久 flag 与各子命令的 flag 共同填充。
	cli config.CLIArgs
}

// cwd 返回当前目录的绝对路径（失败时退化为 "."）。
func (c *commandContext) cwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if abs, err := filepath.Abs(wd); err == nil {
		return abs
	}
	return wd
}

// load 合并配置文件与命令行参数。
func (c *commandContext) load() (config.EffectiveConfig, error) {
	cli := c.cli
	cli.ConfigPath = strings.TrimSpace(c.configFlag)
	return config.LoadEffective(c.cwd(), cli)
}

// logger 按最终配置构造 logger；日志永远写 stderr。
func (c *commandContext) logger(cmd *cobra.Command, eff config.EffectiveConfig) *slog.Logger {
	log, err := logging.New(logging.Options{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return log
}

// runner 装配 Runner；只有交互终端才挂进度输出。
func (c *commandContext) runner(cmd *cobra.Command, eff config.EffectiveConfig) *run.Runner {
	var obs run.Observer
	if w, ok := pickProgressWriter(cmd, !c.jsonOutput(cmd)); ok {
		obs = newProgressUI(w)
	}
	return run.NewRunner(eff, c.logger(cmd, eff), obs)
}

// jsonOutput 表示 stdout 是否只输出 JSON。
func (c *commandContext) jsonOutput(cmd *cobra.Command) bool {
	return c.jsonFlag || !isTerminal(cmd.OutOrStdout())
}

func pickProgressWriter(cmd *cobra.Command, allowStdout bool) (io.Writer, bool) {
	// 进度只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if w := cmd.ErrOrStderr(); isTerminal(w) {
		return w, true
	}
	// 仅重定向了 stderr 时 stdout 仍是终端：退化输出到 stdout（--json 时不行）。
	if w := cmd.OutOrStdout(); allowStdout && isTerminal(w) {
		return w, true
	}
	return nil, false
}
