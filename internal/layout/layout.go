// Package layout 负责数据集输出目录的固定三目录结构：创建、校验与路径计算。
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/fsx"
)

// PathError 表示布局创建/校验失败。失败不会破坏已存在的目录树。
type PathError struct {
	Path string
	Op   string
	Err  error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s 失败：%q：%v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s 失败：%q", e.Op, e.Path)
}

func (e *PathError) Unwrap() error { return e.Err }

// IsPathError 判断 err 是否为 PathError。
func IsPathError(err error) bool {
	var e *PathError
	return errors.As(err, &e)
}

var errNotWritable = errors.New("目录不可写")

// Resolve 只做路径计算（clean + absolute），不访问文件系统。
func Resolve(rootPath string) (domain.DatasetRoot, error) {
	p := strings.TrimSpace(rootPath)
	if p == "" {
		return domain.DatasetRoot{}, &PathError{Path: rootPath, Op: "解析数据集目录", Err: errors.New("路径为空")}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return domain.DatasetRoot{}, &PathError{Path: rootPath, Op: "解析数据集目录", Err: err}
	}
	return domain.DatasetRoot{
		Path:        abs,
		Images:      filepath.Join(abs, domain.ImagesDirName),
		Annotations: filepath.Join(abs, domain.AnnotationsDirName),
		Lst:         filepath.Join(abs, domain.LstDirName),
	}, nil
}

// EnsureLayout 创建 <root>/images、<root>/annotations、<root>/lst（幂等、递归）。
//
// 规则：
// - 已存在的目录原样保留，从不删除或修改已有内容
// - root 或任一子目录以非目录形式存在：PathError
// - root 不存在且最近的已存在祖先目录不可写：PathError
func EnsureLayout(rootPath string) (domain.DatasetRoot, error) {
	root, err := Resolve(rootPath)
	if err != nil {
		return domain.DatasetRoot{}, err
	}

	fi, err := os.Stat(root.Path)
	switch {
	case err == nil:
		if !fi.IsDir() {
			return domain.DatasetRoot{}, &PathError{
				Path: root.Path, Op: "创建数据集目录",
				Err: &fsx.PathTypeConflictError{Path: root.Path, Want: "dir", Got: "file"},
			}
		}
	case os.IsNotExist(err):
		anc, e := nearestExistingDir(filepath.Dir(root.Path))
		if e != nil {
			return domain.DatasetRoot{}, &PathError{Path: root.Path, Op: "创建数据集目录", Err: e}
		}
		if !fsx.Writable(anc) {
			return domain.DatasetRoot{}, &PathError{Path: anc, Op: "创建数据集目录", Err: errNotWritable}
		}
	default:
		return domain.DatasetRoot{}, &PathError{Path: root.Path, Op: "创建数据集目录", Err: err}
	}

	for _, dir := range []string{root.Images, root.Annotations, root.Lst} {
		if err := fsx.EnsureDir(dir); err != nil {
			return domain.DatasetRoot{}, &PathError{Path: dir, Op: "创建子目录", Err: err}
		}
	}
	return root, nil
}

// nearestExistingDir 自 dir 向上找到第一个已存在的路径；若它不是目录则报错。
func nearestExistingDir(dir string) (string, error) {
	for {
		fi, err := os.Stat(dir)
		if err == nil {
			if !fi.IsDir() {
				return "", &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
			}
			return dir, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", err
		}
		dir = parent
	}
}
