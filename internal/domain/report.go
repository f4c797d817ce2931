package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// 阶段名。
const (
	StageInit         = "init"
	StageConvertImage = "convert-images"
	StageConvertMask  = "convert-masks"
	StageManifest     = "manifest"
	StagePackage      = "package"
)

// 阶段整体状态。
const (
	StatusOK       = "ok"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// 条目状态。
const (
	ItemConverted      = "converted"
	ItemFailed         = "failed"
	ItemSkipped        = "skipped"
	ItemPending        = "pending"
	ItemPaired         = "paired"
	ItemUnmatchedImage = "unmatched_image"
	ItemUnmatchedMask  = "unmatched_mask"
	ItemArchived       = "archived"
)

const (
	ErrCodePath              = "path_error"
	ErrCodeDecode            = "decode_failed"
	ErrCodeEncode            = "encode_failed"
	ErrCodeDuplicateBaseName = "duplicate_basename"
	ErrCodeWrite             = "write_failed"
	ErrCodePackage           = "package_failed"
	ErrCodeLocked            = "root_locked"
	ErrCodeCanceled          = "canceled"
	ErrCodeInvalidSpec       = "invalid_spec"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissing     = "config_missing_field"
)

// Report 是对外稳定输出（stdout JSON）的结构，每个阶段一份。
type Report struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	Root  string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Artifact 是阶段产物路径（清单或归档）；没有产物时为空。
	Artifact string `json:"artifact,omitempty"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
	Pending         int `json:"pending"`
	Pairs           int `json:"pairs"`
	UnmatchedImages int `json:"unmatched_images"`
	UnmatchedMasks  int `json:"unmatched_masks"`
}

type ItemResult struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Fail 把阶段级错误写入报告（阶段只失败一次，不拆成条目）。
func (r *Report) Fail(code string, msg string) {
	r.Status = StatusFailed
	r.ErrorCode = code
	r.ErrorMsg = msg
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 (src, dst) 字典序
// 3) summary 由 items 计算得出；status 未被 Fail 设置时由 summary 推导
func (r *Report) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Dst < b.Dst
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case ItemConverted, ItemArchived:
			s.Succeeded++
		case ItemFailed:
			s.Failed++
		case ItemSkipped:
			s.Skipped++
		case ItemPending:
			s.Pending++
		case ItemPaired:
			s.Pairs++
		case ItemUnmatchedImage:
			s.UnmatchedImages++
		case ItemUnmatchedMask:
			s.UnmatchedMasks++
		}
	}
	r.Summary = s

	switch {
	case r.Status == StatusFailed || r.Status == StatusCanceled:
	case s.Pending > 0:
		r.Status = StatusCanceled
	case s.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusOK
	}
}

// OK 表示该阶段是否完全成功（unmatched 只是警告）。
func (r Report) OK() bool { return r.Status == StatusOK }

// MarshalJSON 仅用于集中约束输出的稳定性。
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(Alias(r))
}
