// Package batch 对一个源目录中的全部输入文件执行转换。
//
// 单个文件的失败只记录在 BatchResult 中，从不中断批次；
// 只有批次级错误（参数无效、目录不可用）通过 error 返回。
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/John-Robertt/dsfa/internal/app/planner"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/fsx"
	"github.com/John-Robertt/dsfa/internal/layout"
	"github.com/John-Robertt/dsfa/internal/scan"
	"github.com/John-Robertt/dsfa/internal/transcode"
)

// FileDone 描述单个文件处理结束（成功或失败）。
type FileDone struct {
	Source    string
	Output    string // 失败时为空
	Err       error
	ErrorCode string
	Dur       time.Duration
}

// Options 控制批处理的执行方式；零值可用（单 worker、无进度回调、不写日志）。
type Options struct {
	Workers int
	// Progress 在每个文件结束后调用。可能来自多个 goroutine，实现必须并发安全。
	Progress func(done, total int, ev FileDone)
	Logger   *slog.Logger
}

// ProcessBatch 扫描 sourceDir，把每个输入文件按 spec 转换后写入 destDir。
//
// 取消：已开始的文件会做完；未开始的文件列入 Pending，返回 ctx.Err()。
// 已经写出的文件保留。
func ProcessBatch(ctx context.Context, sourceDir string, spec domain.ConversionSpec, destDir string, opts Options) (domain.BatchResult, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := spec.Validate(); err != nil {
		return domain.BatchResult{}, fmt.Errorf("%w：%v", transcode.ErrInvalidSpec, err)
	}

	srcAbs, err := filepath.Abs(sourceDir)
	if err != nil {
		return domain.BatchResult{}, &layout.PathError{Path: sourceDir, Op: "解析源目录", Err: err}
	}
	dstAbs, err := filepath.Abs(destDir)
	if err != nil {
		return domain.BatchResult{}, &layout.PathError{Path: destDir, Op: "解析目标目录", Err: err}
	}
	if fi, err := os.Stat(dstAbs); err != nil {
		return domain.BatchResult{}, &layout.PathError{Path: dstAbs, Op: "检查目标目录", Err: err}
	} else if !fi.IsDir() {
		return domain.BatchResult{}, &layout.PathError{
			Path: dstAbs, Op: "检查目标目录",
			Err: &fsx.PathTypeConflictError{Path: dstAbs, Want: "dir", Got: "file"},
		}
	}

	files, skipped, err := scan.ScanSources(srcAbs)
	if err != nil {
		return domain.BatchResult{}, &layout.PathError{Path: srcAbs, Op: "扫描源目录", Err: err}
	}
	existing, err := planner.ReadDestState(dstAbs)
	if err != nil {
		return domain.BatchResult{}, &layout.PathError{Path: dstAbs, Op: "读取目标目录", Err: err}
	}
	plan := planner.PlanBatch(srcAbs, files, spec, dstAbs, existing)

	res := domain.BatchResult{
		SourceDir: srcAbs,
		DestDir:   dstAbs,
		Succeeded: make([]domain.ConvertedFile, 0, len(plan.Jobs)),
		Failed:    append([]domain.FileFailure{}, plan.Conflicts...),
		Skipped:   append([]string{}, skipped...),
		Pending:   []string{},
	}
	for _, c := range plan.Conflicts {
		log.Warn("源文件 base name 冲突", "src", c.SourcePath, "error", c.ErrorMsg)
	}
	for _, s := range skipped {
		log.Debug("跳过非图像文件", "src", s)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	type outcome struct {
		job     domain.ConvertJob
		file    domain.ConvertedFile
		err     error
		pending bool
		dur     time.Duration
	}

	jobs := make(chan domain.ConvertJob)
	results := make(chan outcome, len(plan.Jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- outcome{job: j, pending: true}
					continue
				}
				started := time.Now()
				f, err := transcode.Transcode(j.Source.Path, spec, dstAbs)
				results <- outcome{job: j, file: f, err: err, dur: time.Since(started)}
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i, j := range plan.Jobs {
			select {
			case <-ctx.Done():
				for _, rest := range plan.Jobs[i:] {
					results <- outcome{job: rest, pending: true}
				}
				return
			case jobs <- j:
			}
		}
	}()

	total := len(plan.Jobs)
	done := 0
	for o := range results {
		if o.pending {
			res.Pending = append(res.Pending, o.job.Source.Path)
			continue
		}
		done++
		ev := FileDone{Source: o.job.Source.Path, Err: o.err, Dur: o.dur}
		if o.err != nil {
			f := failure(o.job.Source.Path, o.err)
			ev.ErrorCode = f.ErrorCode
			res.Failed = append(res.Failed, f)
			log.Warn("文件转换失败", "src", o.job.Source.Path, "error", o.err)
		} else {
			ev.Output = o.file.OutputPath
			res.Succeeded = append(res.Succeeded, o.file)
			log.Debug("文件已转换", "src", o.job.Source.Path, "dst", o.file.OutputPath, "overwrite", o.job.Overwrite, "dur", o.dur)
		}
		if opts.Progress != nil {
			opts.Progress(done, total, ev)
		}
	}

	sortResult(&res)
	if err := ctx.Err(); err != nil {
		res.Canceled = true
		return res, err
	}
	return res, nil
}

// failure 把 transcode 的错误映射为稳定的错误码。
func failure(src string, err error) domain.FileFailure {
	code := domain.ErrCodeWrite
	switch {
	case transcode.IsDecodeError(err):
		code = domain.ErrCodeDecode
	case transcode.IsEncodeError(err):
		code = domain.ErrCodeEncode
	}
	return domain.FileFailure{SourcePath: src, ErrorCode: code, ErrorMsg: err.Error(), Err: err}
}

// sortResult 保证结果与调度顺序无关。
func sortResult(r *domain.BatchResult) {
	sort.Slice(r.Succeeded, func(i, j int) bool { return r.Succeeded[i].SourcePath < r.Succeeded[j].SourcePath })
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].SourcePath < r.Failed[j].SourcePath })
	sort.Strings(r.Skipped)
	sort.Strings(r.Pending)
}
