package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// 报告已经输出过（stdout JSON 或终端摘要），这里只负责退出码。
		if !errors.Is(err, context.Canceled) && !errors.Is(err, errNotOK) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
