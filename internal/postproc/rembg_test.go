package postproc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRembgClientRemove(t *testing.T) {
	cut := []byte("cut-out-bytes")
	var gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		gotBody = buf.Bytes()
		_, _ = w.Write(cut)
	}))
	defer srv.Close()

	client, err := NewRembgClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRembgClient: %v", err)
	}
	out, err := client.Remove(context.Background(), []byte("source"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !bytes.Equal(out, cut) {
		t.Fatalf("output mismatch")
	}
	if gotContentType != "application/octet-stream" {
		t.Fatalf("content-type = %q", gotContentType)
	}
	if string(gotBody) != "source" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestRembgClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewRembgClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRembgClient: %v", err)
	}
	if _, err := client.Remove(context.Background(), []byte("source")); err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("err = %v, want service error message", err)
	}
	if _, err := client.Remove(context.Background(), nil); err == nil {
		t.Fatalf("expected error on empty payload")
	}
	if _, err := NewRembgClient("  ", nil); err == nil {
		t.Fatalf("expected error on empty endpoint")
	}
}

func TestEncodePNGNormalizesJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	out, err := EncodePNG(jpegBuf.Bytes())
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not png: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Fatalf("size = %dx%d, want 32x32", b.Dx(), b.Dy())
	}
}

func TestEncodePNGRejectsGarbage(t *testing.T) {
	if _, err := EncodePNG([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := EncodePNG(nil); err == nil {
		t.Fatalf("expected error on empty payload")
	}
}
