package pairs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/John-Robertt/dsfa/internal/layout"
	"github.com/John-Robertt/dsfa/internal/scan"
)

func setup(t *testing.T, images, masks []string) (string, string) {
	t.Helper()
	root := t.TempDir()
	imgDir := filepath.Join(root, "images")
	maskDir := filepath.Join(root, "annotations")
	for _, n := range images {
		touch(t, filepath.Join(imgDir, n))
	}
	for _, n := range masks {
		touch(t, filepath.Join(maskDir, n))
	}
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.MkdirAll(maskDir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	return imgDir, maskDir
}

func TestIndexPairs_IntersectionAndDifferences(t *testing.T) {
	imgDir, maskDir := setup(t, []string{"a.png", "b.png"}, []string{"a.png", "c.png"})

	idx, err := IndexPairs(imgDir, maskDir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(idx.Pairs) != 1 || idx.Pairs[0].BaseName != "a" {
		t.Fatalf("期望 pairs=[a]，实际 %+v", idx.Pairs)
	}
	if idx.Pairs[0].ImagePath != filepath.Join(imgDir, "a.png") || idx.Pairs[0].MaskPath != filepath.Join(maskDir, "a.png") {
		t.Fatalf("配对路径不正确：%+v", idx.Pairs[0])
	}
	if !reflect.DeepEqual(idx.UnmatchedImages, []string{"b"}) {
		t.Fatalf("期望 unmatchedImages=[b]，实际 %v", idx.UnmatchedImages)
	}
	if !reflect.DeepEqual(idx.UnmatchedMasks, []string{"c"}) {
		t.Fatalf("期望 unmatchedMasks=[c]，实际 %v", idx.UnmatchedMasks)
	}
}

func TestIndexPairs_ExtensionInsensitiveCaseSensitive(t *testing.T) {
	imgDir, maskDir := setup(t, []string{"x.jpg", "Y.png"}, []string{"x.png", "y.png"})

	idx, err := IndexPairs(imgDir, maskDir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(idx.Pairs) != 1 || idx.Pairs[0].ImageName != "x.jpg" || idx.Pairs[0].MaskName != "x.png" {
		t.Fatalf("期望 x.jpg 与 x.png 配对，实际 %+v", idx.Pairs)
	}
	if idx.Pairs[0].ImageRel() != "images/x.jpg" || idx.Pairs[0].MaskRel() != "annotations/x.png" {
		t.Fatalf("相对路径不正确：%q %q", idx.Pairs[0].ImageRel(), idx.Pairs[0].MaskRel())
	}
	if !reflect.DeepEqual(idx.UnmatchedImages, []string{"Y"}) || !reflect.DeepEqual(idx.UnmatchedMasks, []string{"y"}) {
		t.Fatalf("大小写不同不应配对：%+v", idx)
	}
}

func TestIndexPairs_DuplicateBaseName(t *testing.T) {
	imgDir, maskDir := setup(t, []string{"a.png", "a.jpg"}, []string{"a.png", "m.png", "m.bmp"})

	_, err := IndexPairs(imgDir, maskDir)
	if !IsDuplicateBaseName(err) {
		t.Fatalf("期望 DuplicateBaseNameError，实际 %v", err)
	}
	e := err.(*DuplicateBaseNameError)
	if len(e.Groups) != 2 {
		t.Fatalf("期望列出 2 组冲突，实际 %+v", e.Groups)
	}
	if e.Groups[0].Dir != imgDir || !reflect.DeepEqual(e.Groups[0].Names, []string{"a.jpg", "a.png"}) {
		t.Fatalf("第一组冲突不正确：%+v", e.Groups[0])
	}
	if e.Groups[1].Dir != maskDir || e.Groups[1].BaseName != "m" {
		t.Fatalf("第二组冲突不正确：%+v", e.Groups[1])
	}
}

func TestIndexPairs_EmptyAndMissingDirs(t *testing.T) {
	imgDir, maskDir := setup(t, nil, nil)
	idx, err := IndexPairs(imgDir, maskDir)
	if err != nil {
		t.Fatalf("空目录不应报错：%v", err)
	}
	if len(idx.Pairs) != 0 || len(idx.UnmatchedImages) != 0 || len(idx.UnmatchedMasks) != 0 {
		t.Fatalf("期望空结果，实际 %+v", idx)
	}

	imgOnly, _ := setup(t, []string{"a.png"}, nil)
	idx, err = IndexPairs(imgOnly, filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("目录不存在应视为空：%v", err)
	}
	if !reflect.DeepEqual(idx.UnmatchedImages, []string{"a"}) {
		t.Fatalf("期望 unmatchedImages=[a]，实际 %v", idx.UnmatchedImages)
	}
}

func TestIndexPairs_DirIsPlainFileIsPathError(t *testing.T) {
	imgDir, _ := setup(t, []string{"a.png"}, nil)
	plain := filepath.Join(t.TempDir(), "annotations")
	touch(t, plain)

	_, err := IndexPairs(imgDir, plain)
	if !layout.IsPathError(err) {
		t.Fatalf("期望 PathError，实际 %T %v", err, err)
	}
	if !errors.Is(err, scan.ErrNotDir) {
		t.Fatalf("期望包装 ErrNotDir，实际 %v", err)
	}
}

func TestIndexPairs_IgnoresHiddenAndTempFiles(t *testing.T) {
	imgDir, maskDir := setup(t, []string{"a.png", ".a.png.tmp-42", ".DS_Store"}, []string{"a.png"})
	idx, err := IndexPairs(imgDir, maskDir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(idx.Pairs) != 1 || len(idx.UnmatchedImages) != 0 {
		t.Fatalf("隐藏文件应被忽略：%+v", idx)
	}
}

func TestIndexPairs_DeterministicByteOrder(t *testing.T) {
	names := []string{"b.png", "B.png", "a10.png", "a2.png", "_x.png", "é.png"}
	imgDir, maskDir := setup(t, names, names)

	first, err := IndexPairs(imgDir, maskDir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got []string
	for _, p := range first.Pairs {
		got = append(got, p.BaseName)
	}
	want := []string{"B", "_x", "a10", "a2", "b", "é"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望字节序 %v，实际 %v", want, got)
	}

	for i := 0; i < 5; i++ {
		again, err := IndexPairs(imgDir, maskDir)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("多次调用结果不一致")
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
