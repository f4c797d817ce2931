package packager

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func populate(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("创建目录失败：%v", err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatalf("写入失败：%v", err)
		}
	}
}

func readZip(t *testing.T, path string) (map[string]string, []string) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("打开归档失败：%v", err)
	}
	defer zr.Close()

	files := map[string]string{}
	var order []string
	for _, f := range zr.File {
		order = append(order, f.Name)
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("读取条目失败：%v", err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("读取条目失败：%v", err)
		}
		files[f.Name] = string(b)
	}
	return files, order
}

func TestPackage_ExtractedContentsMatchTree(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "TARGET_EXTRACTION")
	tree := map[string]string{
		"images/a.jpg":      "image-a",
		"images/b.jpg":      strings.Repeat("b", 100000),
		"annotations/a.png": "mask-a",
		"lst/lst.txt":       "images/a.jpg\tannotations/a.png\n",
		"extra/notes.md":    "keep me",
	}
	populate(t, root, tree)
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	got, err := Package(context.Background(), root, "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != filepath.Join(parent, "TARGET_EXTRACTION.zip") {
		t.Fatalf("默认应放在 root 的父目录：%q", got)
	}

	files, order := readZip(t, got)
	if len(files) != len(tree) {
		t.Fatalf("文件数不一致：%v", order)
	}
	for rel, data := range tree {
		if files["TARGET_EXTRACTION/"+rel] != data {
			t.Fatalf("%s 内容不一致", rel)
		}
	}
	if order[0] != "TARGET_EXTRACTION/" {
		t.Fatalf("第一个条目应为根目录：%v", order)
	}
	hasEmpty := false
	for _, n := range order {
		if n == "TARGET_EXTRACTION/empty/" {
			hasEmpty = true
		}
	}
	if !hasEmpty {
		t.Fatalf("空目录应被收录：%v", order)
	}
	for i := 1; i < len(order); i++ {
		if strings.TrimSuffix(order[i-1], "/") >= strings.TrimSuffix(order[i], "/") {
			t.Fatalf("条目应按字典序：%v", order)
		}
	}
}

func TestPackage_NeverIncludesItself(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ds")
	populate(t, root, map[string]string{"images/a.png": "a"})

	// 第一次打到 root 里面，第二次再打一次：第二次不应包含第一次的归档。
	p1, err := Package(context.Background(), root, root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	p2, err := Package(context.Background(), root, root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p1 != p2 {
		t.Fatalf("两次归档路径应相同：%q %q", p1, p2)
	}
	files, order := readZip(t, p2)
	if _, ok := files["ds/ds.zip"]; ok {
		t.Fatalf("归档不应包含自身：%v", order)
	}
	for _, n := range order {
		if strings.Contains(n, ".tmp-") {
			t.Fatalf("归档不应包含临时文件：%v", order)
		}
	}
}

func TestPackage_CanceledLeavesNothing(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ds")
	populate(t, root, map[string]string{"images/a.png": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Package(ctx, root, "")
	if !IsPackageError(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("期望包装 context.Canceled 的 PackageError，实际 %v", err)
	}
	ents, _ := os.ReadDir(parent)
	if len(ents) != 1 {
		t.Fatalf("失败后只应剩 root 目录：%v", ents)
	}
}

func TestPackage_UnreadableFileAborts(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户无视文件权限")
	}
	parent := t.TempDir()
	root := filepath.Join(parent, "ds")
	populate(t, root, map[string]string{"images/a.png": "a", "images/b.png": "b"})
	locked := filepath.Join(root, "images", "b.png")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod 失败：%v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	_, err := Package(context.Background(), root, "")
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Path != locked {
		t.Fatalf("期望指向 b.png 的 PackageError，实际 %v", err)
	}
	ents, _ := os.ReadDir(parent)
	if len(ents) != 1 {
		t.Fatalf("失败后不应留下归档或临时文件：%v", ents)
	}
}

func TestPackage_RootMustBeDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := Package(context.Background(), p, ""); !IsPackageError(err) {
		t.Fatalf("期望 PackageError，实际 %v", err)
	}
}
