package domain

import "path"

// Pair 是一对同名（去扩展名后相同）的图像与 mask；只由 pairs.IndexPairs 构造，构造后不再修改。
type Pair struct {
	BaseName  string
	ImagePath string // 绝对路径
	MaskPath  string // 绝对路径
	ImageName string // images/ 下的文件名
	MaskName  string // annotations/ 下的文件名
}

// ImageRel 返回清单中使用的图像相对路径（'/' 分隔）。
func (p Pair) ImageRel() string { return path.Join(ImagesDirName, p.ImageName) }

// MaskRel 返回清单中使用的 mask 相对路径（'/' 分隔）。
func (p Pair) MaskRel() string { return path.Join(AnnotationsDirName, p.MaskName) }

// PairIndex 是一次配对的完整结果；每次生成清单都重新计算，不做增量更新。
type PairIndex struct {
	Pairs           []Pair
	UnmatchedImages []string // 只存在于 images/ 的 base name
	UnmatchedMasks  []string // 只存在于 annotations/ 的 base name
}

// NameGroup 是同一 base name 下的一组文件名（已排序）。长度 > 1 表示重名冲突。
type NameGroup struct {
	BaseName string
	Names    []string
}
