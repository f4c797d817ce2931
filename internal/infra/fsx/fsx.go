package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// os.CreateTemp 把 '*' 替换为一串十进制数字。
var tempNameRE = regexp.MustCompile(`^\..+\.tmp-[0-9]+$`)

// PathTypeConflictError 表示路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 临时文件总是与目标同目录，出现 EXDEV 说明目录本身被替换或挂载点变化，直接失败。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘重命名失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir 确保 dir 是目录（不存在则递归创建）；已存在的非目录返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），覆盖同名文件。
//
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 临时文件名以 '.' 开头，扫描/配对阶段会忽略它
// - 失败时临时文件会被清理，目标文件保持原样
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return WriteAtomic(dir, name, func(w io.Writer) error {
		return writeAll(w, data)
	})
}

// WriteAtomic 与 WriteFileAtomicReplace 相同，但内容由 fill 流式写入。
// fill 返回错误时不会产生目标文件。
func WriteAtomic(dir, name string, fill func(w io.Writer) error) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}

	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	tmp, err := CreateTemp(dir, name)
	if err != nil {
		return err
	}
	defer tmp.Discard()

	if err := fill(tmp.File); err != nil {
		return err
	}
	return tmp.Commit(dst)
}

// TempFile 是同目录临时文件：Commit 原子替换到目标，Discard 清理（Commit 之后 Discard 为空操作）。
type TempFile struct {
	*os.File
	dir       string
	committed bool
}

// CreateTemp 在 dir 下创建 "."+name+".tmp-*" 临时文件。
func CreateTemp(dir, name string) (*TempFile, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &TempFile{File: f, dir: dir}, nil
}

// Commit 刷盘并把临时文件 rename 到 dst。
func (t *TempFile) Commit(dst string) error {
	if err := t.Chmod(0o644); err != nil {
		return err
	}
	if err := t.Sync(); err != nil {
		return err
	}
	if err := t.Close(); err != nil {
		return err
	}
	if err := Rename(t.Name(), dst); err != nil {
		return err
	}
	t.committed = true

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(t.dir)
	return nil
}

// Discard 关闭并删除尚未 Commit 的临时文件。
func (t *TempFile) Discard() {
	if t.committed {
		return
	}
	_ = t.Close()
	_ = os.Remove(t.Name())
}

// IsTempName 判断 name 是否为本包产生的临时文件名。
func IsTempName(name string) bool {
	if len(name) < 2 || name[0] != '.' {
		return false
	}
	return tempNameRE.MatchString(name)
}

// IsHidden 判断文件名是否为隐藏文件（'.' 开头）；扫描与配对都忽略隐藏文件。
func IsHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
