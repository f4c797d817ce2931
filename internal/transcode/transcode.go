// Package transcode 把单个源文件转换为目标尺寸与格式的输出文件。
package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/John-Robertt/dsfa/internal/domain"
	"github.com/John-Robertt/dsfa/internal/infra/fsx"
	"github.com/John-Robertt/dsfa/internal/infra/imgx"
)

// DecodeError 表示源文件无法读取或不是可识别的图像。
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码失败：%q：%v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func IsDecodeError(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}

// EncodeError 表示图像无法按目标格式编码（含 mask 标签校验失败）。
type EncodeError struct {
	Path   string
	Format domain.Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("编码为 %s 失败：%q：%v", e.Format, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func IsEncodeError(err error) bool {
	var e *EncodeError
	return errors.As(err, &e)
}

// WriteError 表示输出文件写入失败（目标文件保持原样）。
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("写入失败：%q：%v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrInvalidSpec 包装 ConversionSpec.Validate 的错误。
var ErrInvalidSpec = errors.New("转换参数无效")

// Transcode 解码 sourcePath，按 spec 重采样并编码，原子写入 destDir/<base>.<ext>。
//
// 失败时不会在 destDir 留下半成品；已存在的同名输出保持原样。
func Transcode(sourcePath string, spec domain.ConversionSpec, destDir string) (domain.ConvertedFile, error) {
	if err := spec.Validate(); err != nil {
		return domain.ConvertedFile{}, fmt.Errorf("%w：%v", ErrInvalidSpec, err)
	}

	src, _, err := imgx.DecodeFile(sourcePath)
	if err != nil {
		return domain.ConvertedFile{}, &DecodeError{Path: sourcePath, Err: err}
	}

	out, err := resize(src, spec)
	if err != nil {
		return domain.ConvertedFile{}, &EncodeError{Path: sourcePath, Format: spec.Format, Err: err}
	}

	var buf bytes.Buffer
	if err := imgx.Encode(&buf, out, spec.Format, spec.EffectiveJPEGQuality()); err != nil {
		return domain.ConvertedFile{}, &EncodeError{Path: sourcePath, Format: spec.Format, Err: err}
	}

	base := domain.BaseName(filepath.Base(sourcePath))
	name := spec.OutputName(base)
	if err := fsx.WriteFileAtomicReplace(destDir, name, buf.Bytes()); err != nil {
		return domain.ConvertedFile{}, &WriteError{Path: filepath.Join(destDir, name), Err: err}
	}

	return domain.ConvertedFile{
		BaseName:   base,
		SourcePath: sourcePath,
		OutputPath: filepath.Join(destDir, name),
		Format:     spec.Format,
		Width:      spec.Width,
		Height:     spec.Height,
	}, nil
}

func resize(src image.Image, spec domain.ConversionSpec) (image.Image, error) {
	if spec.Kind != domain.KindMask {
		return imgx.Resize(src, spec.Width, spec.Height, spec.EffectiveResample())
	}

	src = imgx.NormalizeMask(src)
	if err := imgx.CheckMaskEncodable(src, spec.Format); err != nil {
		return nil, err
	}
	out, err := imgx.Resize(src, spec.Width, spec.Height, domain.ResampleNearest)
	if err != nil {
		return nil, err
	}
	if v, ok := imgx.SubsetOf(imgx.Labels(out), imgx.Labels(src)); !ok {
		return nil, fmt.Errorf("缩放后出现源图中不存在的标签值 %#x", v)
	}
	return out, nil
}

