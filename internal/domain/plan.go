package domain

// ConvertJob 规划单个源文件的转换（只描述 src/dst；真正的写入由 transcode 完成）。
type ConvertJob struct {
	Source     SourceFile
	OutputName string
	OutputPath string

	// Overwrite 表示目标目录中已有同名输出，本次会原子覆盖它。
	Overwrite bool
}

// BatchPlan 是一次批处理的执行计划。
//
// - Jobs 按源路径字典序
// - Conflicts 是会写到同一输出文件的源文件，全部判为失败，不进入 Jobs
type BatchPlan struct {
	Jobs      []ConvertJob
	Conflicts []FileFailure
}
