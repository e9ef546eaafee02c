package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedImageMIME(t *testing.T) {
	tests := []struct {
		name         string
		data         []byte
		wantMIME     string
		wantDetected bool
	}{
		{
			name:         "phone JPEG with EXIF",
			data:         []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x1C, 0x45, 'E', 'x', 'i', 'f', 0x00, 0x00},
			wantMIME:     "image/jpeg",
			wantDetected: true,
		},
		{
			name:         "JFIF JPEG",
			data:         []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
			wantMIME:     "image/jpeg",
			wantDetected: true,
		},
		{
			name:         "PNG screenshot",
			data:         []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			wantMIME:     "image/png",
			wantDetected: true,
		},
		{
			name:         "lossy WebP from an Android camera",
			data:         append([]byte("RIFF\x24\x6c\x01\x00WEBPVP8 "), make([]byte, 16)...),
			wantMIME:     "image/webp",
			wantDetected: true,
		},
		{
			name:         "lossless WebP",
			data:         append([]byte("RIFF\x1a\x00\x00\x00WEBPVP8L"), make([]byte, 16)...),
			wantMIME:     "image/webp",
			wantDetected: true,
		},
		{
			name:         "GIF",
			data:         []byte("GIF89a"),
			wantMIME:     "image/gif",
			wantDetected: true,
		},
		{
			name:         "HEIC from an iPhone",
			data:         append([]byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), make([]byte, 16)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "AVIF",
			data:         append([]byte("\x00\x00\x00\x1cftypavif\x00\x00\x00\x00avifmif1"), make([]byte, 16)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "MP4 clip of the ice",
			data:         append([]byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom"), make([]byte, 16)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "RIFF but not WebP",
			data:         append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "PDF renamed to .jpg",
			data:         []byte("%PDF-1.4 malicious content"),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "BMP",
			data:         append([]byte("BM"), make([]byte, 30)...),
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "empty",
			data:         []byte{},
			wantMIME:     "",
			wantDetected: false,
		},
		{
			name:         "too short for WebP check",
			data:         []byte("RIFF"),
			wantMIME:     "",
			wantDetected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMIME, gotDetected := allowedImageMIME(tt.data)
			assert.Equal(t, tt.wantDetected, gotDetected)
			assert.Equal(t, tt.wantMIME, gotMIME)
		})
	}
}
