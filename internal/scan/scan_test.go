package scan

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/dsfa/internal/domain"
)

func TestScanSources_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2)
	writePNG(t, filepath.Join(dir, "a.PNG"), 2, 2)
	writePNG(t, filepath.Join(dir, "sniffed.dat"), 2, 2)
	touch(t, filepath.Join(dir, "corrupt.jpg"))
	touch(t, filepath.Join(dir, "readme.txt"))
	touch(t, filepath.Join(dir, ".hidden.png"))
	touch(t, filepath.Join(dir, ".a.png.tmp-123"))
	touch(t, filepath.Join(dir, "sub", "nested.png"))

	files, skipped, err := ScanSources(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	want := []string{"a.PNG", "b.png", "corrupt.jpg", "sniffed.dat"}
	if len(names) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("期望 %v，实际 %v", want, names)
		}
	}
	if files[0].BaseName != "a" || files[0].Ext != ".png" {
		t.Fatalf("BaseName/Ext 不正确：%+v", files[0])
	}
	if len(skipped) != 1 || filepath.Base(skipped[0]) != "readme.txt" {
		t.Fatalf("skipped 不正确：%v", skipped)
	}
}

func TestScanSources_NotADirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	touch(t, p)
	if _, _, err := ScanSources(p); err == nil {
		t.Fatalf("期望错误")
	}
	if _, _, err := ScanSources(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("目录不存在应报错")
	}
}

func TestListFiles_MissingDirIsEmpty(t *testing.T) {
	got, err := ListFiles(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(got) != 0 {
		t.Fatalf("期望空结果，实际 %v %v", got, err)
	}
}

func TestInspect_ReportsSizeAndLabels(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 6, 4)
	touch(t, filepath.Join(dir, "bad.png"))

	entries, err := Inspect(dir, domain.KindMask)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("期望 2 条，实际 %d", len(entries))
	}
	a := entries[0]
	if a.Format != "png" || a.Width != 6 || a.Height != 4 || a.Labels != 2 {
		t.Fatalf("a.png 结果不正确：%+v", a)
	}
	if entries[1].Error == "" {
		t.Fatalf("损坏文件应带错误信息：%+v", entries[1])
	}

	entries, err = Inspect(dir, domain.KindImage)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if entries[0].Labels != 0 || entries[0].Width != 6 {
		t.Fatalf("图像不统计标签：%+v", entries[0])
	}
}

// writePNG 写一张左右两种灰度的 PNG。
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 1})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
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
