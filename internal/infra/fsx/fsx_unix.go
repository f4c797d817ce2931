//go:build unix

package fsx

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func isEXDEV(err error) bool {
	if errors.Is(err, unix.EXDEV) {
		return true
	}
	var le *os.LinkError
	if errors.As(err, &le) && errors.Is(le.Err, unix.EXDEV) {
		return true
	}
	return false
}

// Writable 判断当前进程能否在 dir 下创建文件。
func Writable(dir string) bool {
	return unix.Access(dir, unix.W_OK|unix.X_OK) == nil
}
