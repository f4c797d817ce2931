// Package manifest 读写 lst/lst.txt。
//
// 格式：每行一对，`images/<文件名>` TAB `annotations/<文件名>` LF；
// 行序即配对顺序（base name 字节序）；无表头；空配对得到空文件。
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/fsx"
)

// Delimiter 是清单的列分隔符，固定为 TAB。
const Delimiter = '\t'

// Entry 是清单中的一行。
type Entry struct {
	ImagePath string
	MaskPath  string
}

// WriteError 表示清单写入失败；失败时旧清单保持原样，不会出现半截文件。
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("写入清单失败：%q：%v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func IsWriteError(err error) bool {
	var e *WriteError
	return errors.As(err, &e)
}

// Encode 在内存中生成清单内容。
func Encode(idx domain.PairIndex) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range idx.Pairs {
		img, mask := p.ImageRel(), p.MaskRel()
		if err := checkField(img); err != nil {
			return nil, err
		}
		if err := checkField(mask); err != nil {
			return nil, err
		}
		buf.WriteString(img)
		buf.WriteByte(Delimiter)
		buf.WriteString(mask)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Write 整体覆盖 lstPath（临时文件 + rename）。lstPath 的父目录必须已存在。
func Write(idx domain.PairIndex, lstPath string) error {
	data, err := Encode(idx)
	if err != nil {
		return &WriteError{Path: lstPath, Err: err}
	}
	if data == nil {
		data = []byte{}
	}
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(lstPath), filepath.Base(lstPath), data); err != nil {
		return &WriteError{Path: lstPath, Err: err}
	}
	return nil
}

// Parse 读取清单内容。空行视为格式错误。
func Parse(r io.Reader) ([]Entry, error) {
	out := []Entry{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		img, mask, ok := strings.Cut(sc.Text(), string(Delimiter))
		if !ok || img == "" || mask == "" || strings.ContainsRune(mask, Delimiter) {
			return nil, fmt.Errorf("清单第 %d 行格式错误：%q", line, sc.Text())
		}
		out = append(out, Entry{ImagePath: img, MaskPath: mask})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile 读取并解析 path 处的清单。
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Entries 返回 idx 对应的清单行（与 Parse 的结果可直接比较）。
func Entries(idx domain.PairIndex) []Entry {
	out := make([]Entry, 0, len(idx.Pairs))
	for _, p := range idx.Pairs {
		out = append(out, Entry{ImagePath: p.ImageRel(), MaskPath: p.MaskRel()})
	}
	return out
}

func checkField(s string) error {
	if strings.ContainsAny(s, "\t\r\n") {
		return fmt.Errorf("文件名包含制表符或换行，无法写入清单：%q", s)
	}
	return nil
}
