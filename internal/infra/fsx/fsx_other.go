//go:build !unix

package fsx

import (
	"os"
	"path/filepath"
)

func isEXDEV(err error) bool { return false }

// Writable 判断当前进程能否在 dir 下创建文件（非 unix 平台用探针文件判断）。
func Writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".dsfa-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(filepath.Clean(name))
	return true
}
