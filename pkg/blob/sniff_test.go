package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Minimal valid file signatures for sniffing.
var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	zipHeader  = []byte{'P', 'K', 0x03, 0x04, 0x14, 0x00, 0x00, 0x00, 0x08, 0x00}
	plainText  = []byte("this is definitely not a jar file")
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"png", pngHeader, "image/png"},
		{"gif", gifHeader, "image/gif"},
		{"jpeg", jpegHeader, "image/jpeg"},
		{"zip", zipHeader, "application/zip"},
		{"text", plainText, "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mime, Classify(tt.data))
		})
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage(pngHeader))
	assert.True(t, IsImage(jpegHeader))
	assert.False(t, IsImage(zipHeader))
	assert.False(t, IsImage(plainText))
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive(zipHeader))
	assert.False(t, IsArchive(pngHeader))
	assert.False(t, IsArchive(plainText))
}

func TestImageSubtype(t *testing.T) {
	assert.Equal(t, "png", ImageSubtype(pngHeader))
	assert.Equal(t, "jpeg", ImageSubtype(jpegHeader))
	assert.Equal(t, "", ImageSubtype(zipHeader))
}
