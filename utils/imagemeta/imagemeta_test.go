package imagemeta

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	path := filepath.Join(t.TempDir(), "a.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestProbe(t *testing.T) {
	dims, err := Probe(writePNG(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 40, Height: 30}, dims)
}

func TestProbe_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := Probe(path)
	assert.Error(t, err)

	_, err = Probe(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

// exifJPEG 编码 JPEG 并在 SOI 之后插入只含方向标记的 APP1 段
func exifJPEG(t *testing.T, w, h, orientation int, order binary.ByteOrder) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	raw := buf.Bytes()

	tiff := make([]byte, 8+2+12+4)
	if order == binary.LittleEndian {
		copy(tiff, "II")
	} else {
		copy(tiff, "MM")
	}
	order.PutUint16(tiff[2:], 42)
	order.PutUint32(tiff[4:], 8)
	order.PutUint16(tiff[8:], 1)
	order.PutUint16(tiff[10:], 0x0112)
	order.PutUint16(tiff[12:], 3)
	order.PutUint32(tiff[14:], 1)
	order.PutUint16(tiff[18:], uint16(orientation))

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := append([]byte{}, raw[:2]...)
	out = append(out, segment...)
	return append(out, raw[2:]...)
}

func TestOrientation(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		for o := 1; o <= 8; o++ {
			data := exifJPEG(t, 8, 4, o, order)
			assert.Equal(t, o, Orientation(bytes.NewReader(data)), "%v orientation %d", order, o)
		}
	}

	var plain bytes.Buffer
	require.NoError(t, jpeg.Encode(&plain, image.NewRGBA(image.Rect(0, 0, 8, 4)), nil))
	assert.Equal(t, 1, Orientation(bytes.NewReader(plain.Bytes())))
	assert.Equal(t, 1, Orientation(bytes.NewReader([]byte("not a jpeg"))))
	assert.Equal(t, 1, Orientation(bytes.NewReader(exifJPEG(t, 8, 4, 42, binary.BigEndian))))
}

// TestProbe_ExifOrientation 测试旋转 90 度的方向返回摆正后的宽高
func TestProbe_ExifOrientation(t *testing.T) {
	tests := []struct {
		orientation int
		want        Dimensions
	}{
		{1, Dimensions{Width: 200, Height: 150}},
		{3, Dimensions{Width: 200, Height: 150}},
		{5, Dimensions{Width: 150, Height: 200}},
		{6, Dimensions{Width: 150, Height: 200}},
		{8, Dimensions{Width: 150, Height: 200}},
	}
	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "photo.jpg")
		require.NoError(t, os.WriteFile(path, exifJPEG(t, 200, 150, tt.orientation, binary.BigEndian), 0644))

		dims, err := Probe(path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, dims, "orientation %d", tt.orientation)
	}
}
