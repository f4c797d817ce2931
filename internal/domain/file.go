package domain

import (
	"path/filepath"
	"strings"
)

// BaseName 去掉最后一个扩展名（大小写敏感，不做任何归一化）。
func BaseName(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

// SourceFile 描述一次扫描得到的输入文件（只在单次批处理内存在，不落盘）。
type SourceFile struct {
	Path     string // clean + absolute
	Name     string // 文件名（含扩展名）
	BaseName string // 去掉最后一个扩展名后的文件名，大小写敏感
	Ext      string // 小写，含 '.'
}

// ConvertedFile 是单个文件转换成功后的结果。
//
// 不变量：OutputPath 的文件名 = BaseName + "." + Format.Ext()；Width/Height 等于目标尺寸。
type ConvertedFile struct {
	BaseName   string `json:"base_name"`
	SourcePath string `json:"source_path"`
	OutputPath string `json:"output_path"`
	Format     Format `json:"format"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// FileFailure 记录单个文件的失败；Err 保留原始错误供调用方 errors.As。
type FileFailure struct {
	SourcePath string `json:"source_path"`
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error_msg"`
	Err        error  `json:"-"`
}

// BatchResult 是一次批处理的结果（各列表均按源路径字典序排列）。
type BatchResult struct {
	SourceDir string
	DestDir   string

	Succeeded []ConvertedFile
	Failed    []FileFailure
	Skipped   []string // 非图像文件，静默跳过
	Pending   []string // 取消时尚未开始处理的文件

	Canceled bool
}

// Total 返回参与转换的文件数（不含 Skipped）。
func (r BatchResult) Total() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Pending)
}
