// Package scan 列出目录中的源文件。只看目录的直接子项，不递归。
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/fsx"
	"github.com/John-Robertt/dsfa/internal/infra/imgx"
)

// ErrNotDir 表示扫描目标存在但不是目录。
var ErrNotDir = errors.New("不是目录")

// ScanSources 列出 dir 下可作为输入的图像文件。
//
// 规则：
// - 隐藏文件（'.' 开头，含本工具的临时文件）与子目录直接忽略
// - 已知图像扩展名（大小写不敏感）视为图像，损坏与否留给解码阶段判断
// - 其他扩展名按文件头嗅探；不是图像的进入 skipped
//
// 两个返回列表都按文件名字典序排列。
func ScanSources(dir string) (files []domain.SourceFile, skipped []string, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, nil, err
	}
	names, err := regularFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	files = make([]domain.SourceFile, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))
		if !isImageExt(ext) {
			if _, ok := imgx.Sniff(p); !ok {
				skipped = append(skipped, p)
				continue
			}
		}
		files = append(files, domain.SourceFile{
			Path:     p,
			Name:     name,
			BaseName: domain.BaseName(name),
			Ext:      ext,
		})
	}
	return files, skipped, nil
}

// ListFiles 返回 dir 下非隐藏的普通文件名（已排序）。dir 不存在时视为空目录。
func ListFiles(dir string) ([]string, error) {
	names, err := regularFiles(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return names, err
}

func regularFiles(dir string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%q：%w", dir, ErrNotDir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if fsx.IsHidden(name) || e.IsDir() {
			continue
		}
		// 符号链接按目标判断；悬空链接忽略。
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
	}
	// os.ReadDir 已按文件名排序，这里再排一次以固定语义。
	sort.Strings(names)
	return names, nil
}

func isImageExt(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".gif", ".webp":
		return true
	default:
		return false
	}
}
