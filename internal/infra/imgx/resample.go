package imgx

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/John-Robertt/dsfa/internal/domain"
)

// Resize 把 src 拉伸到 w×h（不保持比例，不裁切）。
//
// nearest 走“按存储逐字节复制”的路径：输出像素一定是某个输入像素的原值，
// 不会引入新的标签值。其余算法是插值，只适用于普通图像。
func Resize(src image.Image, w, h int, r domain.Resample) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("目标尺寸必须为正数，实际 %dx%d", w, h)
	}
	if r == domain.ResampleNearest {
		return resizeExact(src, image.Rect(0, 0, w, h)), nil
	}

	interp, err := interpolator(r)
	if err != nil {
		return nil, err
	}
	dr := image.Rect(0, 0, w, h)
	var dst draw.Image
	if _, ok := src.(*image.Gray); ok {
		dst = image.NewGray(dr)
	} else {
		dst = image.NewRGBA(dr)
	}
	interp.Scale(dst, dr, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

func interpolator(r domain.Resample) (draw.Interpolator, error) {
	switch r {
	case domain.ResampleApproxBiLinear:
		return draw.ApproxBiLinear, nil
	case domain.ResampleBiLinear:
		return draw.BiLinear, nil
	case domain.ResampleCatmullRom, "":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("不支持的重采样算法 %q", r)
	}
}

// NormalizeMask 把没有“逐字节可复制”存储的图像（YCbCr、CMYK 等）转成 NRGBA；
// 其他类型原样返回。mask 的标签集合以归一化后的图像为准。
func NormalizeMask(src image.Image) image.Image {
	switch src.(type) {
	case *image.Paletted, *image.Gray, *image.Gray16,
		*image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return src
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// resizeExact 用最近邻缩放，并保持输出与输入相同的像素存储类型。
//
// Paletted 按 Gray 解释（都是 1 字节/像素），NRGBA 按 RGBA 解释，
// 这样缩放时不会经过预乘 alpha 或调色板查找，索引/原始字节被原样复制。
func resizeExact(src image.Image, dr image.Rectangle) image.Image {
	switch s := src.(type) {
	case *image.Paletted:
		g := nearest(image.NewGray(dr), &image.Gray{Pix: s.Pix, Stride: s.Stride, Rect: s.Rect}).(*image.Gray)
		return &image.Paletted{Pix: g.Pix, Stride: g.Stride, Rect: g.Rect, Palette: s.Palette}
	case *image.Gray:
		return nearest(image.NewGray(dr), s)
	case *image.Gray16:
		return nearest(image.NewGray16(dr), s)
	case *image.NRGBA:
		d := nearest(image.NewRGBA(dr), &image.RGBA{Pix: s.Pix, Stride: s.Stride, Rect: s.Rect}).(*image.RGBA)
		return &image.NRGBA{Pix: d.Pix, Stride: d.Stride, Rect: d.Rect}
	case *image.NRGBA64:
		d := nearest(image.NewRGBA64(dr), &image.RGBA64{Pix: s.Pix, Stride: s.Stride, Rect: s.Rect}).(*image.RGBA64)
		return &image.NRGBA64{Pix: d.Pix, Stride: d.Stride, Rect: d.Rect}
	case *image.RGBA:
		return nearest(image.NewRGBA(dr), s)
	case *image.RGBA64:
		return nearest(image.NewRGBA64(dr), s)
	default:
		return resizeExact(NormalizeMask(src), dr)
	}
}

func nearest(dst draw.Image, src image.Image) draw.Image {
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
