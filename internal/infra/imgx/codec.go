// Package imgx 封装图像的解码、重采样与编码。
//
// 输入支持 PNG/JPEG/GIF/BMP/TIFF/WebP；输出支持 PNG/JPEG/BMP/TIFF。
// 所有编码器都是确定性的：相同输入得到相同字节。
package imgx

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // 注册 GIF 解码器（只作为输入）
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // 注册 WebP 解码器（只作为输入）

	"github.com/John-Robertt/dsfa/internal/domain"
)

// ErrUnsupportedMode 表示输出格式无法无损表达该图像的颜色模式。
var ErrUnsupportedMode = errors.New("输出格式不支持该颜色模式")

// DecodeFile 解码 path 指向的图像，返回图像与格式名（"png"、"jpeg" 等）。
func DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	img, name, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", errors.New("图片尺寸无效")
	}
	return img, name, nil
}

// DecodeConfigFile 只读取文件头，返回尺寸与格式名。
func DecodeConfigFile(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	return image.DecodeConfig(bufio.NewReader(f))
}

// Sniff 通过文件头判断 path 是否为已注册的图像格式。
func Sniff(path string) (string, bool) {
	_, name, err := DecodeConfigFile(path)
	if err != nil {
		return "", false
	}
	return name, true
}

// Encode 把 img 按 f 编码写入 w。quality 只对 JPEG 生效。
func Encode(w io.Writer, img image.Image, f domain.Format, quality int) error {
	switch f {
	case domain.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	case domain.FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case domain.FormatBMP:
		return bmp.Encode(w, img)
	case domain.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w：未知格式 %q", ErrUnsupportedMode, f)
	}
}

// CheckMaskEncodable 判断 mask 能否无损写成 f。
//
// - 有损格式（JPEG）一律拒绝
// - BMP 只有 8 位通道，16 位 mask 会被截断
// - BMP 不保留 alpha，半透明 mask 的标签值会被改写或合并
func CheckMaskEncodable(img image.Image, f domain.Format) error {
	if f.Lossy() {
		return fmt.Errorf("%w：mask 不能输出为有损格式 %s", ErrUnsupportedMode, f)
	}
	if f == domain.FormatBMP {
		if isDeep(img) {
			return fmt.Errorf("%w：16 位 mask（%T）不能输出为 bmp", ErrUnsupportedMode, img)
		}
		if !isOpaque(img) {
			return fmt.Errorf("%w：半透明 mask（%T）不能输出为 bmp", ErrUnsupportedMode, img)
		}
	}
	return nil
}

// isOpaque 对没有 Opaque 方法的图像按逐像素 alpha 判断。
func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

func isDeep(img image.Image) bool {
	switch img.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}
