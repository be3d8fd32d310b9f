package variant

import (
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
)

// ImagingBackend 基于 disintegration/imaging 的纯 Go 实现
// 不支持 WebP 编码
type ImagingBackend struct{}

var _ Backend = (*ImagingBackend)(nil)

// NewImagingBackend 创建纯 Go 后端
func NewImagingBackend() *ImagingBackend {
	return &ImagingBackend{}
}

func (b *ImagingBackend) Name() string { return BackendImaging }

// Encodes 标准库没有 WebP 编码器
func (b *ImagingBackend) Encodes(f Format) bool { return f != FormatWebP }

func (b *ImagingBackend) Close() error { return nil }

// Resize 等比缩放到目标框内，不放大
func (b *ImagingBackend) Resize(src, dst string, t Target) error {
	return b.process(src, dst, t, func(img image.Image) image.Image {
		return imaging.Fit(img, t.Width, t.Height, imaging.Lanczos)
	})
}

// Crop 填满目标框并居中裁掉溢出部分
func (b *ImagingBackend) Crop(src, dst string, t Target) error {
	return b.process(src, dst, t, func(img image.Image) image.Image {
		return imaging.Fill(img, t.Width, t.Height, imaging.Center, imaging.Lanczos)
	})
}

// CompositeBlur 缩放后高斯模糊
func (b *ImagingBackend) CompositeBlur(src, dst string, t Target) error {
	return b.process(src, dst, t, func(img image.Image) image.Image {
		return imaging.Blur(imaging.Fit(img, t.Width, t.Height, imaging.Lanczos), t.Sigma)
	})
}

func (b *ImagingBackend) process(src, dst string, t Target, transform func(image.Image) image.Image) error {
	format, err := FormatFromPath(dst)
	if err != nil {
		return err
	}

	var encodeFormat imaging.Format
	switch format {
	case FormatJPEG:
		encodeFormat = imaging.JPEG
	case FormatPNG:
		encodeFormat = imaging.PNG
	case FormatGIF:
		encodeFormat = imaging.GIF
	default:
		return ErrUnsupportedFormat
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	out := transform(img)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, out, encodeFormat, imaging.JPEGQuality(t.Quality), imaging.PNGCompressionLevel(imagingPNGLevel(t.Quality))); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// imagingPNGLevel 标准库 PNG 编码器只有四档，将 0-9 级别归入最近的一档
func imagingPNGLevel(quality int) png.CompressionLevel {
	switch level := pngCompression(quality); {
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	}
	return png.BestCompression
}
