package run

import (
	"time"

	"github.com/John-Robertt/dsfa/internal/domain"
)

// Observer 用于把“阶段进度/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnFileDone 可能来自多个 goroutine。
type Observer interface {
	// OnStageStart 在阶段开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStageStart(stage, root string)
	// OnPhaseDone 在阶段内的一步结束时调用（用于打印统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFileDone 在单个文件转换结束时调用（成功或失败）。
	OnFileDone(idx, total int, item domain.ItemResult, dur time.Duration)
}
