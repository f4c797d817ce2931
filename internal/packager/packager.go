// Package packager 把整个数据集目录打成一个 zip 归档。
package packager

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/John-Robertt/dsfa/internal/infra/fsx"
)

// PackageError 表示打包失败；失败时不会在目标位置留下归档或临时文件。
type PackageError struct {
	Path string
	Err  error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("打包失败：%q：%v", e.Path, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

func IsPackageError(err error) bool {
	var e *PackageError
	return errors.As(err, &e)
}

var errSizeChanged = errors.New("打包过程中文件大小发生变化")

// ArchivePath 返回 root 在 destDir 下的归档路径；destDir 为空时取 root 的父目录。
func ArchivePath(root, destDir string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if destDir == "" {
		destDir = filepath.Dir(root)
	}
	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(destDir, filepath.Base(root)+".zip"), nil
}

// Package 把 root 下的全部文件（含空目录）打包为 <destDir>/<root 目录名>.zip。
//
// - 归档内路径以 "<root 目录名>/" 开头，按字典序遍历
// - 归档文件自身（及其临时文件）即使位于 root 内也不会被收录
// - 任一文件不可读、打包中途大小变化或 ctx 取消：整体失败，丢弃临时文件
func Package(ctx context.Context, root, destDir string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", &PackageError{Path: root, Err: err}
	}
	fi, err := os.Stat(rootAbs)
	if err != nil {
		return "", &PackageError{Path: rootAbs, Err: err}
	}
	if !fi.IsDir() {
		return "", &PackageError{Path: rootAbs, Err: &fsx.PathTypeConflictError{Path: rootAbs, Want: "dir", Got: "file"}}
	}

	archivePath, err := ArchivePath(rootAbs, destDir)
	if err != nil {
		return "", &PackageError{Path: destDir, Err: err}
	}
	dir := filepath.Dir(archivePath)
	if err := fsx.EnsureDir(dir); err != nil {
		return "", &PackageError{Path: dir, Err: err}
	}

	tmp, err := fsx.CreateTemp(dir, filepath.Base(archivePath))
	if err != nil {
		return "", &PackageError{Path: archivePath, Err: err}
	}
	defer tmp.Discard()

	zw := zip.NewWriter(tmp.File)
	prefix := filepath.Base(rootAbs)
	skip := map[string]struct{}{archivePath: {}, tmp.Name(): {}}

	walkErr := filepath.WalkDir(rootAbs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &PackageError{Path: p, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return &PackageError{Path: p, Err: err}
		}
		if _, ok := skip[p]; ok {
			return nil
		}
		// 崩溃残留的原子写临时文件不属于数据集。
		if !d.IsDir() && fsx.IsTempName(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(rootAbs, p)
		if err != nil {
			return &PackageError{Path: p, Err: err}
		}
		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return &PackageError{Path: p, Err: err}
			}
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return &PackageError{Path: p, Err: err}
			}
			hdr.Name = name + "/"
			hdr.Method = zip.Store
			if _, err := zw.CreateHeader(hdr); err != nil {
				return &PackageError{Path: p, Err: err}
			}
			return nil
		}
		if t := d.Type(); !t.IsRegular() && t&fs.ModeSymlink == 0 {
			return nil
		}
		return addFile(zw, p, name)
	})
	if walkErr != nil {
		_ = zw.Close()
		var pe *PackageError
		if errors.As(walkErr, &pe) {
			return "", pe
		}
		return "", &PackageError{Path: rootAbs, Err: walkErr}
	}

	if err := zw.Close(); err != nil {
		return "", &PackageError{Path: archivePath, Err: err}
	}
	if err := tmp.Commit(archivePath); err != nil {
		return "", &PackageError{Path: archivePath, Err: err}
	}
	return archivePath, nil
}

// addFile 写入一个文件条目。符号链接按目标处理；指向非普通文件的条目不收录。
func addFile(zw *zip.Writer, p, name string) error {
	f, err := os.Open(p)
	if err != nil {
		return &PackageError{Path: p, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &PackageError{Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return &PackageError{Path: p, Err: err}
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return &PackageError{Path: p, Err: err}
	}
	// 多读 1 字节，用来发现打包过程中被追加写入的文件。
	n, err := io.Copy(w, io.LimitReader(f, info.Size()+1))
	if err != nil {
		return &PackageError{Path: p, Err: err}
	}
	if n != info.Size() {
		return &PackageError{Path: p, Err: errSizeChanged}
	}
	return nil
}
