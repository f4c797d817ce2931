package imgx

import "image"

// Labels 返回 img 中出现过的全部像素值（按存储取值：调色板图取索引，灰度图取灰度）。
func Labels(img image.Image) map[uint64]struct{} {
	out := make(map[uint64]struct{}, 16)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out[labelAt(img, x, y)] = struct{}{}
		}
	}
	return out
}

// SubsetOf 判断 a 中的标签是否都出现在 b 中；返回第一个多出的标签。
func SubsetOf(a, b map[uint64]struct{}) (uint64, bool) {
	for k := range a {
		if _, ok := b[k]; !ok {
			return k, false
		}
	}
	return 0, true
}

func labelAt(img image.Image, x, y int) uint64 {
	switch m := img.(type) {
	case *image.Paletted:
		return uint64(m.ColorIndexAt(x, y))
	case *image.Gray:
		return uint64(m.GrayAt(x, y).Y)
	case *image.Gray16:
		return uint64(m.Gray16At(x, y).Y)
	case *image.NRGBA:
		c := m.NRGBAAt(x, y)
		return uint64(c.R)<<24 | uint64(c.G)<<16 | uint64(c.B)<<8 | uint64(c.A)
	case *image.NRGBA64:
		c := m.NRGBA64At(x, y)
		return uint64(c.R)<<48 | uint64(c.G)<<32 | uint64(c.B)<<16 | uint64(c.A)
	default:
		r, g, b, a := img.At(x, y).RGBA()
		return uint64(r)<<48 | uint64(g)<<32 | uint64(b)<<16 | uint64(a)
	}
}
