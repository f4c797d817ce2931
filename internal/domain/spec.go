package domain

import (
	"fmt"
	"strings"
)

// Format 是输出编码格式。
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat 解析用户输入的格式名（大小写不敏感，接受常见别名）。
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "":
		return "", fmt.Errorf("输出格式不能为空")
	default:
		return "", fmt.Errorf("不支持的输出格式 %q（可选 png/jpg/bmp/tif）", s)
	}
}

// Ext 返回该格式输出文件的扩展名（不含 '.'）。
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tif"
	default:
		return string(f)
	}
}

// Lossy 表示该格式是否有损（有损格式会破坏 mask 的离散标签值）。
func (f Format) Lossy() bool { return f == FormatJPEG }

// Kind 区分图像与 mask：两者的重采样策略不同，这是正确性要求而非外观选择。
type Kind string

const (
	KindImage Kind = "image"
	KindMask  Kind = "mask"
)

// Resample 是重采样算法名。
type Resample string

const (
	ResampleNearest        Resample = "nearest"
	ResampleApproxBiLinear Resample = "approx-bilinear"
	ResampleBiLinear       Resample = "bilinear"
	ResampleCatmullRom     Resample = "catmull-rom"
)

// ParseResample 解析重采样算法名；空串返回空值（表示按 Kind 取默认）。
func ParseResample(s string) (Resample, error) {
	switch r := Resample(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return "", nil
	case ResampleNearest, ResampleApproxBiLinear, ResampleBiLinear, ResampleCatmullRom:
		return r, nil
	default:
		return "", fmt.Errorf("不支持的重采样算法 %q", s)
	}
}

// DefaultJPEGQuality 是未指定 jpeg_quality 时使用的质量。
const DefaultJPEGQuality = 95

// ConversionSpec 是一次批处理的转换参数；同一批次内对所有文件一致。
//
// 约束：
// - Width/Height 必须 > 0，输出尺寸严格等于该值（拉伸，不保持比例）
// - KindMask 只能使用最近邻重采样
type ConversionSpec struct {
	Width    int
	Height   int
	Format   Format
	Kind     Kind
	Resample Resample // 为空时按 Kind 取默认

	JPEGQuality int // 仅 jpeg 使用；0 表示 DefaultJPEGQuality
}

// EffectiveResample 返回实际使用的重采样算法。
func (s ConversionSpec) EffectiveResample() Resample {
	if s.Resample != "" {
		return s.Resample
	}
	if s.Kind == KindMask {
		return ResampleNearest
	}
	return ResampleCatmullRom
}

// EffectiveJPEGQuality 返回实际使用的 JPEG 质量。
func (s ConversionSpec) EffectiveJPEGQuality() int {
	if s.JPEGQuality <= 0 {
		return DefaultJPEGQuality
	}
	return min(s.JPEGQuality, 100)
}

// Validate 校验参数组合。
func (s ConversionSpec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("目标尺寸必须为正数，实际 %dx%d", s.Width, s.Height)
	}
	switch s.Format {
	case FormatPNG, FormatJPEG, FormatBMP, FormatTIFF:
	default:
		// 别名（jpg、tif、PNG）要先经 ParseFormat 规范化，否则 Ext/Lossy/编码器都认不出来。
		if f, err := ParseFormat(string(s.Format)); err == nil {
			return fmt.Errorf("输出格式 %q 不是规范名，应为 %q", s.Format, f)
		}
		return fmt.Errorf("不支持的输出格式 %q（可选 png/jpeg/bmp/tiff）", s.Format)
	}
	switch s.Kind {
	case KindImage:
	case KindMask:
		if s.EffectiveResample() != ResampleNearest {
			return fmt.Errorf("mask 只能使用 nearest 重采样（%q 会引入不存在的标签值）", s.Resample)
		}
	default:
		return fmt.Errorf("未知的文件类型 %q", s.Kind)
	}
	if _, err := ParseResample(string(s.Resample)); err != nil {
		return err
	}
	return nil
}

// OutputName 返回 baseName 在该参数下的输出文件名。
func (s ConversionSpec) OutputName(baseName string) string {
	return baseName + "." + s.Format.Ext()
}
