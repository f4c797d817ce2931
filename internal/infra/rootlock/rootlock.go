// Package rootlock 用咨询锁保证同一数据集目录同一时刻只有一个会修改它的阶段在运行。
package rootlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// BusyError 表示锁已被其他进程（或本进程的另一个阶段）持有。
type BusyError struct {
	Root     string
	LockPath string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("数据集目录正被其他操作使用：%q（锁文件 %q）", e.Root, e.LockPath)
}

func IsBusy(err error) bool {
	var e *BusyError
	return errors.As(err, &e)
}

// Lock 是已持有的目录锁。
type Lock struct {
	root string
	fl   *flock.Flock
}

// PathFor 返回 root 的锁文件路径：<parent>/.<name>.lock。
// 锁文件放在 root 之外，不会被配对或打包。
func PathFor(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+".lock"), nil
}

// Acquire 非阻塞地获取 root 的锁；已被占用时返回 BusyError。
func Acquire(root string) (*Lock, error) {
	p, err := PathFor(root)
	if err != nil {
		return nil, err
	}
	fl := flock.New(p)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取目录锁失败：%q：%w", p, err)
	}
	if !ok {
		return nil, &BusyError{Root: root, LockPath: p}
	}
	return &Lock{root: root, fl: fl}, nil
}

// Path 返回锁文件路径。
func (l *Lock) Path() string { return l.fl.Path() }

// Release 释放锁（锁文件保留，下次直接复用）。
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
