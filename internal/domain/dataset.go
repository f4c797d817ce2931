package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// 固定的三目录布局（上传平台要求，名称不可配置）。
const (
	ImagesDirName      = "images"
	AnnotationsDirName = "annotations"
	LstDirName         = "lst"
	ManifestFileName   = "lst.txt"
)

// DefaultRootName 是 init --under 在父目录下创建的数据集目录名（上传平台约定）。
const DefaultRootName = "TARGET_EXTRACTION"

// DatasetRoot 描述一个数据集输出目录及其三个子目录（全部为 clean + absolute）。
//
// 不变量：任何写入之前三个子目录都必须已存在（由 layout.EnsureLayout 保证）。
type DatasetRoot struct {
	Path        string
	Images      string
	Annotations string
	Lst         string
}

// ManifestPath 返回 lst/lst.txt 的绝对路径。
func (r DatasetRoot) ManifestPath() string {
	return filepath.Join(r.Lst, ManifestFileName)
}

// Name 返回根目录的最后一级名称（归档文件以此命名）。
func (r DatasetRoot) Name() string {
	return filepath.Base(r.Path)
}

// DirFor 返回 kind 对应的输出子目录。
func (r DatasetRoot) DirFor(k Kind) string {
	if k == KindMask {
		return r.Annotations
	}
	return r.Images
}

// Contains 判断 p 是否位于根目录之内（含根目录本身）。
func (r DatasetRoot) Contains(p string) bool {
	p = filepath.Clean(p)
	if p == r.Path {
		return true
	}
	return strings.HasPrefix(p, r.Path+string(filepath.Separator))
}

// Rel 返回 p 相对根目录的路径（统一使用 '/' 分隔）。
func (r DatasetRoot) Rel(p string) (string, error) {
	if !r.Contains(p) {
		return "", errors.New("路径不在数据集目录内：" + p)
	}
	rel, err := filepath.Rel(r.Path, filepath.Clean(p))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
