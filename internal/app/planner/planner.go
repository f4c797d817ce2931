package planner

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/John-Robertt/dsfa/internal/app"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/pairs"
)

// ReadDestState 读取目标目录中已有的文件名（只做 ReadDir，不读文件内容）。
// 若 destDir 不存在，返回空集合且不报错。
func ReadDestState(destDir string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	entries, err := os.ReadDir(destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return existing, nil
		}
		return nil, err
	}
	for _, e := range entries {
		existing[e.Name()] = struct{}{}
	}
	return existing, nil
}

// PlanBatch 基于扫描结果生成确定性的执行计划（不做任何写入）。
//
// 输出文件名只取决于 base name，所以 base name 相同的多个源文件一定会写到同一个目标；
// 这类冲突整组判为失败，避免并发 worker 竞争同一输出、结果取决于调度顺序。
func PlanBatch(sourceDir string, files []domain.SourceFile, spec domain.ConversionSpec, destDir string, existing map[string]struct{}) domain.BatchPlan {
	byName := make(map[string]domain.SourceFile, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		byName[f.Name] = f
		names = append(names, f.Name)
	}

	plan := domain.BatchPlan{
		Jobs:      make([]domain.ConvertJob, 0, len(files)),
		Conflicts: []domain.FileFailure{},
	}
	for _, g := range app.GroupByBaseName(names) {
		if len(g.Names) > 1 {
			err := &pairs.DuplicateBaseNameError{Groups: []pairs.DuplicateGroup{{
				Dir: sourceDir, BaseName: g.BaseName, Names: g.Names,
			}}}
			for _, n := range g.Names {
				plan.Conflicts = append(plan.Conflicts, domain.FileFailure{
					SourcePath: byName[n].Path,
					ErrorCode:  domain.ErrCodeDuplicateBaseName,
					ErrorMsg:   err.Error(),
					Err:        err,
				})
			}
			continue
		}

		src := byName[g.Names[0]]
		out := spec.OutputName(g.BaseName)
		_, overwrite := existing[out]
		plan.Jobs = append(plan.Jobs, domain.ConvertJob{
			Source:     src,
			OutputName: out,
			OutputPath: filepath.Join(destDir, out),
			Overwrite:  overwrite,
		})
	}

	SortJobs(plan.Jobs)
	sort.Slice(plan.Conflicts, func(i, j int) bool { return plan.Conflicts[i].SourcePath < plan.Conflicts[j].SourcePath })
	return plan
}

// SortJobs 让调用方在需要时显式保证稳定顺序（而不是依赖 map 遍历顺序）。
func SortJobs(jobs []domain.ConvertJob) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Source.Path < jobs[j].Source.Path })
}
