package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/dsfa/internal/app/run"
	"github.com/John-Robertt/dsfa/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 所有内容写到 stderr（或 fallback 到 stdout），run 层只发事件，这里决定如何展示。
// 转换阶段用进度条；失败的文件单独打印一行，不会被进度条覆盖。
type progressUI struct {
	w io.Writer

	mu    sync.Mutex
	stage string
	bar   *progressbar.ProgressBar

	// newBar 便于测试替换；nil 时使用默认样式。
	newBar func(total int, desc string) *progressbar.ProgressBar
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStageStart(stage, root string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finishBarLocked()
	p.stage = stage
	fmt.Fprintf(p.w, "[%s] dsfa %s\n", time.Now().Format("15:04:05"), stage)
	fmt.Fprintf(p.w, "  root: %s\n", root)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "layout":
		fmt.Fprintf(p.w, "目录: images/ annotations/ lst/ 就绪 (%s)\n", formatShortDuration(dur))
	case "convert":
		p.finishBarLocked()
		fmt.Fprintf(p.w, "转换: succeeded=%d failed=%d skipped=%d pending=%d (%s)\n",
			intField(fields, "succeeded"),
			intField(fields, "failed"),
			intField(fields, "skipped"),
			intField(fields, "pending"),
			formatShortDuration(dur),
		)
	case "index":
		fmt.Fprintf(p.w, "配对: pairs=%d unmatched_images=%d unmatched_masks=%d (%s)\n",
			intField(fields, "pairs"),
			intField(fields, "unmatched_images"),
			intField(fields, "unmatched_masks"),
			formatShortDuration(dur),
		)
	case "write":
		fmt.Fprintf(p.w, "清单: lines=%d (%s)\n", intField(fields, "lines"), formatShortDuration(dur))
	case "archive":
		archive, _ := fields["archive"].(string)
		fmt.Fprintf(p.w, "打包: %s%s (%s)\n", archive, archiveSize(archive), formatShortDuration(dur))
	default:
		// 未知步骤也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFileDone(idx, total int, item domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil && total > 0 {
		p.bar = p.makeBar(total)
	}

	if item.Status == domain.ItemFailed {
		if p.bar != nil {
			_ = p.bar.Clear()
		}
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s %s: %s (%s)\n",
			idx, total, filepath.Base(item.Src), item.ErrorCode, truncate(item.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
	if p.bar != nil {
		_ = p.bar.Set(idx)
	}
}

func (p *progressUI) makeBar(total int) *progressbar.ProgressBar {
	desc := p.stage
	if p.newBar != nil {
		return p.newBar(total, desc)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressUI) finishBarLocked() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// archiveSize 返回 ", 12 MB" 形式的归档大小；读不到时返回空串。
func archiveSize(path string) string {
	if path == "" {
		return ""
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return ", " + humanize.Bytes(uint64(fi.Size()))
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
