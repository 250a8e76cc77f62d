package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// AlphaMask 从抠图结果提取 alpha 掩码。
// 掩码尺寸必须与 bounds 一致，否则视为模型返回异常。
func AlphaMask(cutout image.Image, bounds image.Rectangle) (*image.Alpha, error) {
	cb := cutout.Bounds()
	if cb.Dx() != bounds.Dx() || cb.Dy() != bounds.Dy() {
		return nil, fmt.Errorf("mask size %dx%d does not match image %dx%d",
			cb.Dx(), cb.Dy(), bounds.Dx(), bounds.Dy())
	}

	src := toNRGBA(cutout)
	w, h := cb.Dx(), cb.Dy()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			mask.Pix[y*mask.Stride+x] = src.Pix[row+x*4+3]
		}
	}
	return mask, nil
}

// Composite 按掩码把前景合成到纯色背景上。
// 每个通道独立计算 out = round(mask*fg + (1-mask)*bg)，输出 alpha 恒为 255。
func Composite(img image.Image, mask *image.Alpha, bg color.NRGBA) (*image.NRGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if mask.Bounds().Dx() != w || mask.Bounds().Dy() != h {
		return nil, errors.New("mask size does not match image")
	}

	src := toNRGBA(img)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srcRow := y * src.Stride
		dstRow := y * dst.Stride
		maskRow := y * mask.Stride
		for x := 0; x < w; x++ {
			a := uint32(mask.Pix[maskRow+x])
			na := 255 - a
			si := srcRow + x*4
			di := dstRow + x*4

			dst.Pix[di] = uint8((a*uint32(src.Pix[si]) + na*uint32(bg.R) + 127) / 255)
			dst.Pix[di+1] = uint8((a*uint32(src.Pix[si+1]) + na*uint32(bg.G) + 127) / 255)
			dst.Pix[di+2] = uint8((a*uint32(src.Pix[si+2]) + na*uint32(bg.B) + 127) / 255)
			dst.Pix[di+3] = 255
		}
	}
	return dst, nil
}

// downscale 限制最大宽度：原图 Lanczos3，掩码最近邻（保持边缘硬度）
func downscale(img image.Image, mask *image.Alpha, maxWidth int) (image.Image, *image.Alpha) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img, mask
	}

	scale := float64(maxWidth) / float64(w)
	newH := int(float64(h) * scale)
	if newH < 1 {
		newH = 1
	}

	resized := resize.Resize(uint(maxWidth), uint(newH), img, resize.Lanczos3)

	scaledMask := image.NewAlpha(image.Rect(0, 0, maxWidth, newH))
	xdraw.NearestNeighbor.Scale(scaledMask, scaledMask.Bounds(), mask, mask.Bounds(), xdraw.Src, nil)

	return resized, scaledMask
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
