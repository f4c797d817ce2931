package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/dsfa/internal/config"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/scan"
)

// errNotOK 表示报告已输出但不是全部成功：只用于决定退出码，不再打印。
var errNotOK = errors.New("阶段未完全成功")

// runOutput 是 run 命令在 stdout 上的唯一 JSON 文档。
type runOutput struct {
	RunID   string          `json:"run_id"`
	Status  string          `json:"status"`
	Reports []domain.Report `json:"reports"`
}

// emit 输出报告并返回退出状态。
//
// stdout 非终端（或 --json）：stdout 必须且仅输出一个 JSON 文档，摘要走 stderr。
// 单阶段命令输出 Report；run 命令输出 runOutput。
func (c *commandContext) emit(cmd *cobra.Command, reps []domain.Report, whole bool) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if c.jsonOutput(cmd) {
		var v any
		if whole {
			v = newRunOutput(reps)
		} else if len(reps) > 0 {
			v = reps[0]
		}
		if err := writeJSON(stdout, v); err != nil {
			return err
		}
		for _, rep := range reps {
			fmt.Fprintln(stderr, summaryLine(rep))
		}
	} else {
		for _, rep := range reps {
			writeHuman(stdout, rep)
		}
	}

	for _, rep := range reps {
		if !rep.OK() {
			return errNotOK
		}
	}
	return nil
}

func (c *commandContext) emitInspect(cmd *cobra.Command, entries []scan.Entry) error {
	if c.jsonOutput(cmd) {
		if entries == nil {
			entries = []scan.Entry{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}
	fmt.Fprintln(cmd.OutOrStdout(), inspectTable(entries))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunOutput(reps []domain.Report) runOutput {
	out := runOutput{Status: domain.StatusOK, Reports: reps}
	if out.Reports == nil {
		out.Reports = []domain.Report{}
	}
	for _, rep := range reps {
		if out.RunID == "" {
			out.RunID = rep.RunID
		}
		if rep.Status != domain.StatusOK && out.Status == domain.StatusOK {
			out.Status = rep.Status
		}
	}
	return out
}

// summaryLine 是每个阶段的一行摘要（stdout 为 JSON 时写 stderr）。
func summaryLine(rep domain.Report) string {
	s := rep.Summary
	line := fmt.Sprintf("完成：stage=%s status=%s", rep.Stage, rep.Status)
	switch rep.Stage {
	case domain.StageConvertImage, domain.StageConvertMask:
		line += fmt.Sprintf(" succeeded=%d failed=%d skipped=%d pending=%d", s.Succeeded, s.Failed, s.Skipped, s.Pending)
	case domain.StageManifest:
		line += fmt.Sprintf(" pairs=%d unmatched_images=%d unmatched_masks=%d", s.Pairs, s.UnmatchedImages, s.UnmatchedMasks)
	}
	if rep.ErrorCode != "" {
		line += fmt.Sprintf(" error=%s: %s", rep.ErrorCode, truncate(rep.ErrorMsg, 160))
	}
	return line
}

func writeHuman(w io.Writer, rep domain.Report) {
	fmt.Fprintln(w, summaryLine(rep))
	if rep.Artifact != "" {
		fmt.Fprintf(w, "  产物: %s\n", rep.Artifact)
	}

	var failed, unmatched [][]string
	for _, it := range rep.Items {
		switch it.Status {
		case domain.ItemFailed:
			failed = append(failed, []string{displayName(rep, it.Src), it.ErrorCode, truncate(it.ErrorMsg, 100)})
		case domain.ItemUnmatchedImage, domain.ItemUnmatchedMask:
			unmatched = append(unmatched, []string{it.Src, it.Status})
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(w, renderTable([]string{"文件", "错误码", "原因"}, failed, nil))
	}
	if len(unmatched) > 0 {
		fmt.Fprintln(w, renderTable([]string{"基名", "状态"}, unmatched, nil))
	}
}

// displayName 缩短条目路径：只在终端展示时使用，JSON 中始终是完整路径。
func displayName(rep domain.Report, p string) string {
	if p == "" {
		return "<" + rep.Stage + ">"
	}
	if !filepath.IsAbs(p) {
		return p
	}
	return filepath.Base(p)
}

func inspectTable(entries []scan.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		size, labels := "", ""
		if e.Error == "" {
			size = fmt.Sprintf("%dx%d", e.Width, e.Height)
		}
		if e.Labels > 0 {
			labels = strconv.Itoa(e.Labels)
		}
		rows = append(rows, []string{e.Name, e.Format, size, labels, truncate(e.Error, 80)})
	}
	return renderTable(
		[]string{"文件", "格式", "尺寸", "标签数", "错误"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

// configErrorReport 把配置错误降级为一份失败报告，保证 stdout 契约不变。
func (c *commandContext) configErrorReport(stage string, err error) domain.Report {
	now := time.Now().UTC()
	root := c.cwd()
	if c.cli.Root != "" {
		if abs, e := filepath.Abs(c.cli.Root); e == nil {
			root = abs
		}
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rep := domain.Report{
		Stage:      stage,
		Root:       root,
		StartedAt:  now,
		FinishedAt: now,
	}
	rep.Fail(code, err.Error())
	rep.Finalize()
	return rep
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// truncate 按字符（而非字节）截断，避免切坏中文。
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
