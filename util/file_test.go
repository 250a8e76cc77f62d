package util

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewNRGBA(image.Rect(0, 0, 3, 2))))

	img, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestDecodeImage_Invalid(t *testing.T) {
	t.Parallel()

	_, _, err := DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestBytesMD5(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", BytesMD5(nil))
	assert.Equal(t, BytesMD5([]byte("abc")), BytesMD5([]byte("abc")))
	assert.NotEqual(t, BytesMD5([]byte("abc")), BytesMD5([]byte("abd")))
}
