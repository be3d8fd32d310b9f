package imagemeta

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var exifHeader = []byte("Exif\x00\x00")

// Orientation 读取 JPEG 的 EXIF 方向标记，缺失或无法解析时返回 1
func Orientation(r io.Reader) int {
	br := bufio.NewReader(r)

	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil || soi[0] != 0xFF || soi[1] != markerSOI {
		return 1
	}

	for {
		marker, err := nextMarker(br)
		if err != nil || marker == markerSOS || marker == markerEOI {
			return 1
		}
		// RSTn 与 TEM 没有长度字段
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return 1
		}
		length := int(binary.BigEndian.Uint16(lenBuf[:])) - 2
		if length < 0 {
			return 1
		}

		if marker != markerAPP1 {
			if _, err := br.Discard(length); err != nil {
				return 1
			}
			continue
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(br, payload); err != nil {
			return 1
		}
		if !bytes.HasPrefix(payload, exifHeader) {
			continue
		}
		return tiffOrientation(payload[len(exifHeader):])
	}
}

// nextMarker 跳过填充字节，返回下一个标记
func nextMarker(br *bufio.Reader) (byte, error) {
	b, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	for b != 0xFF {
		if b, err = br.ReadByte(); err != nil {
			return 0, err
		}
	}
	for b == 0xFF {
		if b, err = br.ReadByte(); err != nil {
			return 0, err
		}
	}
	return b, nil
}

// tiffOrientation 在 IFD0 中查找方向标记
func tiffOrientation(tiff []byte) int {
	if len(tiff) < 8 {
		return 1
	}

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 1
	}
	if order.Uint16(tiff[2:4]) != 42 {
		return 1
	}

	offset := int(order.Uint32(tiff[4:8]))
	if offset < 8 || offset+2 > len(tiff) {
		return 1
	}
	count := int(order.Uint16(tiff[offset : offset+2]))
	entries := tiff[offset+2:]

	for i := 0; i < count && (i+1)*12 <= len(entries); i++ {
		entry := entries[i*12 : (i+1)*12]
		if order.Uint16(entry[0:2]) != tagOrientation {
			continue
		}
		if order.Uint16(entry[2:4]) != typeShort {
			return 1
		}
		v := int(order.Uint16(entry[8:10]))
		if v < 1 || v > 8 {
			return 1
		}
		return v
	}
	return 1
}

// swapsAxes 方向 5-8 需要旋转 90 度，宽高互换
func swapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}
