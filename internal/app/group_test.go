package app

import "testing"

func TestGroupByBaseName_MergeSameBase(t *testing.T) {
	groups := GroupByBaseName([]string{"b.png", "a.png", "a.jpg", "c"})
	if len(groups) != 3 {
		t.Fatalf("期望 3 组，实际 %d", len(groups))
	}
	if groups[0].BaseName != "a" || groups[1].BaseName != "b" || groups[2].BaseName != "c" {
		t.Fatalf("分组排序不稳定：%+v", groups)
	}
	// 组内必须按文件名排序：a.jpg 在 a.png 之前。
	if len(groups[0].Names) != 2 || groups[0].Names[0] != "a.jpg" || groups[0].Names[1] != "a.png" {
		t.Fatalf("组内排序不稳定：%v", groups[0].Names)
	}
}

func TestGroupByBaseName_CaseSensitive(t *testing.T) {
	groups := GroupByBaseName([]string{"A.png", "a.png"})
	if len(groups) != 2 {
		t.Fatalf("base name 大小写敏感，期望 2 组，实际 %d", len(groups))
	}
	// 字节序：大写在前。
	if groups[0].BaseName != "A" {
		t.Fatalf("期望 A 在前，实际 %+v", groups)
	}
}

func TestGroupByBaseName_Empty(t *testing.T) {
	if got := GroupByBaseName(nil); len(got) != 0 {
		t.Fatalf("期望空结果，实际 %v", got)
	}
}
