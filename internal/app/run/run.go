// Package run 提供可被任意前端（CLI、测试）单独调用的各个阶段。
//
// 每个阶段都重新读取文件系统，不在阶段之间缓存任何状态；
// 阶段错误被“降级”进 Report（status=failed + error_code），不以 error 返回。
package run

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/dsfa/internal/batch"
	"github.com/John-Robertt/dsfa/internal/config"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/rootlock"
	"github.com/John-Robertt/dsfa/internal/layout"
	"github.com/John-Robertt/dsfa/internal/manifest"
	"github.com/John-Robertt/dsfa/internal/packager"
	"github.com/John-Robertt/dsfa/internal/pairs"
	"github.com/John-Robertt/dsfa/internal/transcode"
)

// Runner 绑定一个数据集目录；同一个 Runner 上的阶段共享同一个 RunID。
type Runner struct {
	Root       string
	Workers    int
	ArchiveDir string // 为空时放在 Root 的父目录

	Logger   *slog.Logger
	Observer Observer

	// RunID 为空时在第一次使用时生成。
	RunID string
}

// NewRunner 用最终配置构造 Runner。
func NewRunner(eff config.EffectiveConfig, log *slog.Logger, obs Observer) *Runner {
	return &Runner{
		Root:       eff.Root,
		Workers:    eff.Workers,
		ArchiveDir: eff.ArchiveDir,
		Logger:     log,
		Observer:   obs,
	}
}

// Init 创建（或确认）数据集目录的三子目录结构。不加锁：创建目录本身是幂等的。
func (r *Runner) Init(ctx context.Context) domain.Report {
	rep := r.begin(domain.StageInit)
	root, err := r.ensureLayout()
	if err != nil {
		r.fail(&rep, err)
	} else {
		rep.Artifact = root.Path
	}
	return r.finish(&rep)
}

// Convert 把 sourceDir 中的文件按 spec 转换到 images/ 或 annotations/（由 spec.Kind 决定）。
func (r *Runner) Convert(ctx context.Context, sourceDir string, spec domain.ConversionSpec) domain.Report {
	return r.locked(stageFor(spec.Kind), func(rep *domain.Report, root domain.DatasetRoot) error {
		return r.convert(ctx, rep, root, sourceDir, spec)
	})
}

// Manifest 重新配对 images/ 与 annotations/，并整体覆盖 lst/lst.txt。
func (r *Runner) Manifest(ctx context.Context) domain.Report {
	return r.locked(domain.StageManifest, func(rep *domain.Report, root domain.DatasetRoot) error {
		return r.manifest(ctx, rep, root)
	})
}

// Package 把整个数据集目录打成 zip。
func (r *Runner) Package(ctx context.Context) domain.Report {
	return r.locked(domain.StagePackage, func(rep *domain.Report, root domain.DatasetRoot) error {
		return r.pack(ctx, rep, root)
	})
}

// RunAll 依次执行 init → 图像 → mask → 清单 → 打包，并在第一个阶段级失败处停止。
// 单个文件的失败（partial）不算阶段级失败。整个过程持有一次目录锁。
func (r *Runner) RunAll(ctx context.Context, images, masks config.KindConfig) []domain.Report {
	reports := make([]domain.Report, 0, 5)

	initRep := r.Init(ctx)
	reports = append(reports, initRep)
	if stopped(initRep) {
		return reports
	}

	lock, err := rootlock.Acquire(r.Root)
	if err != nil {
		rep := r.begin(stageFor(images.Kind))
		r.fail(&rep, err)
		return append(reports, r.finish(&rep))
	}
	defer r.release(lock)

	root, _ := layout.Resolve(r.Root)
	steps := []struct {
		stage string
		fn    func(rep *domain.Report) error
	}{
		{stageFor(images.Kind), func(rep *domain.Report) error { return r.convert(ctx, rep, root, images.Source, images.Spec) }},
		{stageFor(masks.Kind), func(rep *domain.Report) error { return r.convert(ctx, rep, root, masks.Source, masks.Spec) }},
		{domain.StageManifest, func(rep *domain.Report) error { return r.manifest(ctx, rep, root) }},
		{domain.StagePackage, func(rep *domain.Report) error { return r.pack(ctx, rep, root) }},
	}
	for _, s := range steps {
		rep := r.begin(s.stage)
		if err := s.fn(&rep); err != nil {
			r.fail(&rep, err)
		}
		rep = r.finish(&rep)
		reports = append(reports, rep)
		if stopped(rep) {
			break
		}
	}
	return reports
}

func (r *Runner) convert(ctx context.Context, rep *domain.Report, root domain.DatasetRoot, sourceDir string, spec domain.ConversionSpec) error {
	destDir := root.DirFor(spec.Kind)
	opts := batch.Options{
		Workers: r.Workers,
		Logger:  r.log(),
		Progress: func(done, total int, ev batch.FileDone) {
			if r.Observer == nil {
				return
			}
			r.Observer.OnFileDone(done, total, fileItem(root, ev), ev.Dur)
		},
	}

	started := time.Now()
	res, err := batch.ProcessBatch(ctx, sourceDir, spec, destDir, opts)
	if err != nil && !res.Canceled {
		return err
	}

	for _, f := range res.Succeeded {
		rep.Items = append(rep.Items, domain.ItemResult{Src: f.SourcePath, Dst: rel(root, f.OutputPath), Status: domain.ItemConverted})
	}
	for _, f := range res.Failed {
		rep.Items = append(rep.Items, domain.ItemResult{Src: f.SourcePath, Status: domain.ItemFailed, ErrorCode: f.ErrorCode, ErrorMsg: f.ErrorMsg})
	}
	for _, s := range res.Skipped {
		rep.Items = append(rep.Items, domain.ItemResult{Src: s, Status: domain.ItemSkipped})
	}
	for _, s := range res.Pending {
		rep.Items = append(rep.Items, domain.ItemResult{Src: s, Status: domain.ItemPending})
	}
	r.phase("convert", map[string]any{
		"succeeded": len(res.Succeeded),
		"failed":    len(res.Failed),
		"skipped":   len(res.Skipped),
		"pending":   len(res.Pending),
	}, time.Since(started))

	// 取消时已完成的条目照常保留在报告里。
	return err
}

func (r *Runner) manifest(ctx context.Context, rep *domain.Report, root domain.DatasetRoot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now()
	idx, err := pairs.IndexPairs(root.Images, root.Annotations)
	if err != nil {
		return err
	}
	r.phase("index", map[string]any{
		"pairs":            len(idx.Pairs),
		"unmatched_images": len(idx.UnmatchedImages),
		"unmatched_masks":  len(idx.UnmatchedMasks),
	}, time.Since(started))

	for _, p := range idx.Pairs {
		rep.Items = append(rep.Items, domain.ItemResult{Src: p.ImageRel(), Dst: p.MaskRel(), Status: domain.ItemPaired})
	}
	for _, b := range idx.UnmatchedImages {
		rep.Items = append(rep.Items, domain.ItemResult{Src: b, Status: domain.ItemUnmatchedImage, ErrorMsg: "annotations/ 中没有同名 mask"})
		r.log().Warn("图像没有对应的 mask", "base_name", b)
	}
	for _, b := range idx.UnmatchedMasks {
		rep.Items = append(rep.Items, domain.ItemResult{Src: b, Status: domain.ItemUnmatchedMask, ErrorMsg: "images/ 中没有同名图像"})
		r.log().Warn("mask 没有对应的图像", "base_name", b)
	}

	started = time.Now()
	if err := manifest.Write(idx, root.ManifestPath()); err != nil {
		return err
	}
	rep.Artifact = root.ManifestPath()
	r.phase("write", map[string]any{"lines": len(idx.Pairs)}, time.Since(started))
	return nil
}

func (r *Runner) pack(ctx context.Context, rep *domain.Report, root domain.DatasetRoot) error {
	started := time.Now()
	archive, err := packager.Package(ctx, root.Path, r.ArchiveDir)
	if err != nil {
		return err
	}
	rep.Artifact = archive
	rep.Items = append(rep.Items, domain.ItemResult{Src: root.Path, Dst: archive, Status: domain.ItemArchived})
	r.phase("archive", map[string]any{"archive": archive}, time.Since(started))
	return nil
}

// locked 在 EnsureLayout 之后持有目录锁执行 fn。
func (r *Runner) locked(stage string, fn func(rep *domain.Report, root domain.DatasetRoot) error) domain.Report {
	rep := r.begin(stage)
	root, err := r.ensureLayout()
	if err != nil {
		r.fail(&rep, err)
		return r.finish(&rep)
	}
	lock, err := rootlock.Acquire(root.Path)
	if err != nil {
		r.fail(&rep, err)
		return r.finish(&rep)
	}
	defer r.release(lock)

	if err := fn(&rep, root); err != nil {
		r.fail(&rep, err)
	}
	return r.finish(&rep)
}

func (r *Runner) ensureLayout() (domain.DatasetRoot, error) {
	started := time.Now()
	root, err := layout.EnsureLayout(r.Root)
	if err != nil {
		return domain.DatasetRoot{}, err
	}
	r.phase("layout", map[string]any{"root": root.Path}, time.Since(started))
	return root, nil
}

func (r *Runner) begin(stage string) domain.Report {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	root := r.Root
	if abs, err := filepath.Abs(root); err == nil && root != "" {
		root = abs
	}
	if r.Observer != nil {
		r.Observer.OnStageStart(stage, root)
	}
	r.log().Info("阶段开始", "stage", stage, "root", root, "run_id", r.RunID)
	return domain.Report{
		RunID:     r.RunID,
		Stage:     stage,
		Root:      root,
		StartedAt: time.Now(),
		Items:     make([]domain.ItemResult, 0, 16),
	}
}

func (r *Runner) finish(rep *domain.Report) domain.Report {
	rep.FinishedAt = time.Now()
	rep.Finalize()

	log := r.log().With("stage", rep.Stage, "run_id", rep.RunID, "status", rep.Status)
	if rep.ErrorCode != "" {
		log.Error("阶段失败", "error_code", rep.ErrorCode, "error", rep.ErrorMsg)
	} else {
		log.Info("阶段结束", "succeeded", rep.Summary.Succeeded, "failed", rep.Summary.Failed, "dur", rep.FinishedAt.Sub(rep.StartedAt))
	}
	return *rep
}

// fail 把阶段级错误写入报告；取消单独标记为 canceled。
func (r *Runner) fail(rep *domain.Report, err error) {
	code := ErrorCode(err)
	if code == domain.ErrCodeCanceled {
		rep.Status = domain.StatusCanceled
		rep.ErrorCode = code
		rep.ErrorMsg = err.Error()
		return
	}
	rep.Fail(code, err.Error())
}

func (r *Runner) release(lock *rootlock.Lock) {
	if err := lock.Release(); err != nil {
		r.log().Warn("释放目录锁失败", "lock", lock.Path(), "error", err)
	}
}

func (r *Runner) phase(name string, fields map[string]any, dur time.Duration) {
	if r.Observer != nil {
		r.Observer.OnPhaseDone(name, fields, dur)
	}
}

func (r *Runner) log() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// ErrorCode 把阶段级错误映射为报告中的稳定错误码。
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeCanceled
	case rootlock.IsBusy(err):
		return domain.ErrCodeLocked
	case layout.IsPathError(err):
		return domain.ErrCodePath
	case errors.Is(err, transcode.ErrInvalidSpec):
		return domain.ErrCodeInvalidSpec
	case pairs.IsDuplicateBaseName(err):
		return domain.ErrCodeDuplicateBaseName
	case manifest.IsWriteError(err):
		return domain.ErrCodeWrite
	case packager.IsPackageError(err):
		return domain.ErrCodePackage
	case config.Code(err) != "":
		return config.Code(err)
	default:
		return domain.ErrCodeIOFailed
	}
}

func stageFor(kind domain.Kind) string {
	if kind == domain.KindMask {
		return domain.StageConvertMask
	}
	return domain.StageConvertImage
}

func stopped(rep domain.Report) bool {
	return rep.Status == domain.StatusFailed || rep.Status == domain.StatusCanceled
}

func fileItem(root domain.DatasetRoot, ev batch.FileDone) domain.ItemResult {
	if ev.Err != nil {
		return domain.ItemResult{Src: ev.Source, Status: domain.ItemFailed, ErrorCode: ev.ErrorCode, ErrorMsg: ev.Err.Error()}
	}
	return domain.ItemResult{Src: ev.Source, Dst: rel(root, ev.Output), Status: domain.ItemConverted}
}

// rel 返回 p 相对数据集目录的路径；不在目录内时原样返回。
func rel(root domain.DatasetRoot, p string) string {
	if r, err := root.Rel(p); err == nil {
		return r
	}
	return p
}
