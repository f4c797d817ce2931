// Package pairs 按 base name 配对 images/ 与 annotations/ 中的文件。
package pairs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/dsfa/internal/app"
	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/layout"
	"github.com/John-Robertt/dsfa/internal/scan"
)

// DuplicateGroup 是某个目录里 base name 相同的一组文件。
type DuplicateGroup struct {
	Dir      string
	BaseName string
	Names    []string
}

// DuplicateBaseNameError 表示同一目录内有多个文件的 base name 相同，无法确定配对。
// Groups 列出全部冲突（按目录、base name 排序），而不是只报第一个。
type DuplicateBaseNameError struct {
	Groups []DuplicateGroup
}

func (e *DuplicateBaseNameError) Error() string {
	parts := make([]string, 0, len(e.Groups))
	for _, g := range e.Groups {
		parts = append(parts, fmt.Sprintf("%q 中的 %q：%s", g.Dir, g.BaseName, strings.Join(g.Names, ", ")))
	}
	return "base name 重复：" + strings.Join(parts, "；")
}

func IsDuplicateBaseName(err error) bool {
	var e *DuplicateBaseNameError
	return errors.As(err, &e)
}

// IndexPairs 重新列出两个目录并计算配对（不缓存，不增量）。
//
// - 只看目录的直接子项；隐藏文件与子目录忽略；目录不存在视为空
// - Pairs 按 base name 字节序；Unmatched 列表同样排序
// - 任一目录内 base name 重复：返回 DuplicateBaseNameError
func IndexPairs(imagesDir, annotationsDir string) (domain.PairIndex, error) {
	imgs, err := listGroups(imagesDir)
	if err != nil {
		return domain.PairIndex{}, err
	}
	masks, err := listGroups(annotationsDir)
	if err != nil {
		return domain.PairIndex{}, err
	}

	var dups []DuplicateGroup
	dups = appendDuplicates(dups, imagesDir, imgs)
	dups = appendDuplicates(dups, annotationsDir, masks)
	if len(dups) > 0 {
		return domain.PairIndex{}, &DuplicateBaseNameError{Groups: dups}
	}

	idx := domain.PairIndex{
		Pairs:           []domain.Pair{},
		UnmatchedImages: []string{},
		UnmatchedMasks:  []string{},
	}
	// 两边都已按 base name 排序：归并一次即可。
	i, j := 0, 0
	for i < len(imgs) || j < len(masks) {
		switch {
		case j >= len(masks) || (i < len(imgs) && imgs[i].BaseName < masks[j].BaseName):
			idx.UnmatchedImages = append(idx.UnmatchedImages, imgs[i].BaseName)
			i++
		case i >= len(imgs) || masks[j].BaseName < imgs[i].BaseName:
			idx.UnmatchedMasks = append(idx.UnmatchedMasks, masks[j].BaseName)
			j++
		default:
			im, mk := imgs[i].Names[0], masks[j].Names[0]
			idx.Pairs = append(idx.Pairs, domain.Pair{
				BaseName:  imgs[i].BaseName,
				ImagePath: filepath.Join(imagesDir, im),
				MaskPath:  filepath.Join(annotationsDir, mk),
				ImageName: im,
				MaskName:  mk,
			})
			i++
			j++
		}
	}
	return idx, nil
}

func listGroups(dir string) ([]domain.NameGroup, error) {
	names, err := scan.ListFiles(dir)
	if err != nil {
		return nil, &layout.PathError{Path: dir, Op: "列出目录", Err: err}
	}
	return app.GroupByBaseName(names), nil
}

func appendDuplicates(dst []DuplicateGroup, dir string, groups []domain.NameGroup) []DuplicateGroup {
	for _, g := range groups {
		if len(g.Names) > 1 {
			dst = append(dst, DuplicateGroup{Dir: dir, BaseName: g.BaseName, Names: g.Names})
		}
	}
	return dst
}
