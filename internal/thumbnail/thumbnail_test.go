package thumbnail

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeJpeg(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int) {
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestSize(t *testing.T) {
	table := []struct {
		width, height, maxHeight int
		expectedW, expectedH     int
	}{
		{400, 300, 120, 160, 120},
		{100, 100, 120, 100, 100},
		{120, 120, 120, 120, 120},
		{301, 200, 120, 180, 120},
		{1, 1000, 60, 1, 60},
	}
	for _, row := range table {
		w, h := Size(row.width, row.height, row.maxHeight)
		require.Equal(t, row.expectedW, w)
		require.Equal(t, row.expectedH, h)
	}
}

func TestResizeShrinks(t *testing.T) {
	out, err := Resize(encodeJpeg(t, 400, 300), 120)
	require.NoError(t, err)
	w, h := decodedSize(t, out)
	require.Equal(t, 160, w)
	require.Equal(t, 120, h)
}

func TestResizeNeverEnlarges(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 50, 40))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gray))

	out, err := Resize(buf.Bytes(), 120)
	require.NoError(t, err)
	w, h := decodedSize(t, out)
	require.Equal(t, 50, w)
	require.Equal(t, 40, h)
}

func TestResizeInvalid(t *testing.T) {
	_, err := Resize([]byte("<html>not an image</html>"), 120)
	require.ErrorIs(t, err, ErrDecode)

	_, err = Resize(nil, 120)
	require.ErrorIs(t, err, ErrDecode)
}

func TestResizeRejectsHugeDimensions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	// IHDR: type at 12, width and height at 16 and 20, CRC at 29.
	binary.BigEndian.PutUint32(data[16:], 100_000)
	binary.BigEndian.PutUint32(data[20:], 100_000)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))

	_, err := Resize(data, 120)
	require.ErrorIs(t, err, ErrDecode)
	require.Contains(t, err.Error(), "100000x100000")
}
