package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/dsfa/internal/domain"
)

// blocks 生成一张由 n×n 色块组成的调色板 mask，每块一个标签索引。
func blocks(w, h, n int, pal color.Palette) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := ((x * n / w) + (y*n/h)*n) % len(pal)
			img.SetColorIndex(x, y, uint8(idx))
		}
	}
	return img
}

var labelPalette = color.Palette{
	color.RGBA{0, 0, 0, 255},
	color.RGBA{128, 0, 0, 255},
	color.RGBA{0, 128, 0, 255},
	color.RGBA{128, 128, 0, 255},
}

func TestResize_ExactDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	for _, r := range []domain.Resample{domain.ResampleNearest, domain.ResampleCatmullRom, domain.ResampleBiLinear, domain.ResampleApproxBiLinear} {
		out, err := Resize(src, 64, 128, r)
		if err != nil {
			t.Fatalf("%s 不期望错误：%v", r, err)
		}
		if b := out.Bounds(); b.Dx() != 64 || b.Dy() != 128 {
			t.Fatalf("%s 尺寸不符合预期：%v", r, b)
		}
	}
	if _, err := Resize(src, 0, 10, domain.ResampleNearest); err == nil {
		t.Fatalf("非正尺寸期望错误")
	}
}

func TestResize_NearestKeepsPaletteLabels(t *testing.T) {
	src := blocks(40, 40, 2, labelPalette)
	want := Labels(src)

	for _, size := range [][2]int{{80, 80}, {20, 20}, {33, 57}} {
		out, err := Resize(src, size[0], size[1], domain.ResampleNearest)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		p, ok := out.(*image.Paletted)
		if !ok {
			t.Fatalf("调色板 mask 应保持 *image.Paletted，实际 %T", out)
		}
		if len(p.Palette) != len(labelPalette) {
			t.Fatalf("调色板被改动：%d", len(p.Palette))
		}
		got := Labels(out)
		if len(got) != len(want) {
			t.Fatalf("标签集合不一致：got=%v want=%v", got, want)
		}
		if k, ok := SubsetOf(got, want); !ok {
			t.Fatalf("引入了新标签：%d", k)
		}
	}
}

func TestResize_NearestKeepsGrayLabels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			src.SetGray(x, y, color.Gray{Y: uint8((x / 10) * 7)}) // 0, 7, 14
		}
	}
	out, err := Resize(src, 91, 13, domain.ResampleNearest)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := out.(*image.Gray); !ok {
		t.Fatalf("灰度 mask 应保持 *image.Gray，实际 %T", out)
	}
	got, want := Labels(out), Labels(src)
	if len(got) != 3 || len(want) != 3 {
		t.Fatalf("标签数不正确：got=%v want=%v", got, want)
	}
	if k, ok := SubsetOf(got, want); !ok {
		t.Fatalf("引入了新标签：%d", k)
	}
}

func TestResize_NearestKeepsTranslucentNRGBA(t *testing.T) {
	// 半透明 NRGBA 经过预乘往返会丢精度；逐字节路径必须保持原值。
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 201, G: 3, B: 77, A: 9})
		}
	}
	out, err := Resize(src, 9, 9, domain.ResampleNearest)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	n, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("期望 *image.NRGBA，实际 %T", out)
	}
	if c := n.NRGBAAt(8, 8); c != (color.NRGBA{R: 201, G: 3, B: 77, A: 9}) {
		t.Fatalf("像素值被改动：%v", c)
	}
}

func TestResize_SmoothIntroducesIntermediateValues(t *testing.T) {
	// 对比用例：插值会在边界上产生新值，这正是 mask 不能用它的原因。
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 0})
	src.SetGray(1, 0, color.Gray{Y: 200})

	out, err := Resize(src, 16, 1, domain.ResampleBiLinear)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, ok := SubsetOf(Labels(out), Labels(src)); ok {
		t.Fatalf("期望插值产生中间值")
	}
}

func TestEncode_AllFormatsDecodeBack(t *testing.T) {
	src := blocks(16, 8, 2, labelPalette)
	for _, f := range []domain.Format{domain.FormatPNG, domain.FormatJPEG, domain.FormatBMP, domain.FormatTIFF} {
		var buf bytes.Buffer
		if err := Encode(&buf, src, f, 90); err != nil {
			t.Fatalf("%s 编码失败：%v", f, err)
		}
		img, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("%s 解码失败：%v", f, err)
		}
		if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
			t.Fatalf("%s 尺寸不一致：%v", f, b)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	src := blocks(32, 32, 4, labelPalette)
	for _, f := range []domain.Format{domain.FormatPNG, domain.FormatJPEG, domain.FormatBMP, domain.FormatTIFF} {
		var a, b bytes.Buffer
		if err := Encode(&a, src, f, 95); err != nil {
			t.Fatalf("编码失败：%v", err)
		}
		if err := Encode(&b, src, f, 95); err != nil {
			t.Fatalf("编码失败：%v", err)
		}
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Fatalf("%s 两次编码结果不一致", f)
		}
	}
}

func TestCheckMaskEncodable(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray16 := image.NewGray16(image.Rect(0, 0, 1, 1))

	if err := CheckMaskEncodable(gray, domain.FormatJPEG); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("jpeg mask 期望 ErrUnsupportedMode，实际 %v", err)
	}
	if err := CheckMaskEncodable(gray16, domain.FormatBMP); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("16 位 bmp mask 期望 ErrUnsupportedMode，实际 %v", err)
	}
	for _, f := range []domain.Format{domain.FormatPNG, domain.FormatTIFF} {
		if err := CheckMaskEncodable(gray16, f); err != nil {
			t.Fatalf("%s 不期望错误：%v", f, err)
		}
	}
	if err := CheckMaskEncodable(gray, domain.FormatBMP); err != nil {
		t.Fatalf("8 位 bmp mask 不期望错误：%v", err)
	}

	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	translucent.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 10, A: 128})
	translucent.SetNRGBA(1, 0, color.NRGBA{A: 255})
	if err := CheckMaskEncodable(translucent, domain.FormatBMP); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("半透明 bmp mask 期望 ErrUnsupportedMode，实际 %v", err)
	}
	for _, f := range []domain.Format{domain.FormatPNG, domain.FormatTIFF} {
		if err := CheckMaskEncodable(translucent, f); err != nil {
			t.Fatalf("半透明 %s mask 不期望错误：%v", f, err)
		}
	}
	opaque := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	opaque.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	if err := CheckMaskEncodable(opaque, domain.FormatBMP); err != nil {
		t.Fatalf("不透明 bmp mask 不期望错误：%v", err)
	}
}

func TestSniffAndDecodeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "noext")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatalf("编码失败：%v", err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	name, ok := Sniff(p)
	if !ok || name != "png" {
		t.Fatalf("期望识别为 png，实际 %q %v", name, ok)
	}
	img, _, err := DecodeFile(p)
	if err != nil {
		t.Fatalf("解码失败：%v", err)
	}
	if img.Bounds().Dx() != 3 {
		t.Fatalf("尺寸不正确：%v", img.Bounds())
	}

	txt := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, ok := Sniff(txt); ok {
		t.Fatalf("文本文件不应被识别为图像")
	}
}
