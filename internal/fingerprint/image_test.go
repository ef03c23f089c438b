package fingerprint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte("\xff\xd8\xffhello")
	b64 := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr error
	}{
		{"data URL", "data:image/jpeg;base64," + b64, payload, nil},
		{"bare base64", b64, payload, nil},
		{"surrounding whitespace", "  " + b64 + "\n", payload, nil},
		{"unpadded", base64.RawStdEncoding.EncodeToString(payload), payload, nil},
		{"empty", "", nil, ErrEmptyImage},
		{"blank", "   ", nil, ErrEmptyImage},
		{"empty payload", "data:image/png;base64,", nil, ErrEmptyImage},
		{"not base64", "data:image/png;base64,!!!", nil, ErrUndecodableImage},
		{"missing comma", "data:image/png;base64", nil, ErrUndecodableImage},
		{"not base64 data URL", "data:text/plain,hello", nil, ErrUndecodableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeDataURL() error = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeDataURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrepareImage_PassesSmallPNGThrough(t *testing.T) {
	data := encodePNG(t, testImage(64, 48))

	got, err := PrepareImage(data, 1280)
	if err != nil {
		t.Fatalf("PrepareImage() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("PrepareImage() re-encoded an image that needed no changes")
	}
}

func TestPrepareImage_Downscales(t *testing.T) {
	data := encodePNG(t, testImage(400, 200))

	got, err := PrepareImage(data, 100)
	if err != nil {
		t.Fatalf("PrepareImage() error = %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(got))
	if err != nil {
		t.Fatalf("result is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("resized to %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestPrepareImage_ReencodesBMP(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(32, 32)); err != nil {
		t.Fatalf("bmp.Encode() error = %v", err)
	}

	got, err := PrepareImage(buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("PrepareImage() error = %v", err)
	}
	if detectMIMEType(got) != "image/jpeg" {
		t.Errorf("PrepareImage() produced %s, want image/jpeg", detectMIMEType(got))
	}
}

func TestPrepareImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrEmptyImage},
		{"garbage", []byte("definitely not an image"), ErrUndecodableImage},
		{"truncated png", encodePNG(t, testImage(16, 16))[:20], ErrUndecodableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PrepareImage(tt.data, 100); !errors.Is(err, tt.wantErr) {
				t.Errorf("PrepareImage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
