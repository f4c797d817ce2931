package app

import (
	"sort"

	"github.com/John-Robertt/dsfa/internal/domain"
)

// GroupByBaseName 把文件名按 base name（去掉最后一个扩展名，大小写敏感）分组。
//
// - groups 稳定排序：按 BaseName 字节序
// - 组内 Names 稳定排序：按文件名字节序
func GroupByBaseName(names []string) []domain.NameGroup {
	index := make(map[string]int, len(names))
	groups := make([]domain.NameGroup, 0, len(names))

	for _, n := range names {
		base := domain.BaseName(n)
		if idx, ok := index[base]; ok {
			groups[idx].Names = append(groups[idx].Names, n)
			continue
		}
		index[base] = len(groups)
		groups = append(groups, domain.NameGroup{BaseName: base, Names: []string{n}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].BaseName < groups[j].BaseName })
	for i := range groups {
		sort.Strings(groups[i].Names)
	}
	return groups
}
