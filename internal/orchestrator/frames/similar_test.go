package frames

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/GriffinCanCode/attention-guard/internal/attention"
)

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// blocks returns a 64x64 image of irregular 8x8 tiles, optionally inverted.
func blocks(t *testing.T, inverted bool) []byte {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(((x/8)*7 + (y/8)*3) % 5 * 60)
			if inverted {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return encode(t, img)
}

func TestLookupMissThenHit(t *testing.T) {
	r := NewReuser(0, 0)
	frame := blocks(t, false)
	est := &attention.Estimate{Yaw: 3}

	if _, ok := r.Lookup(frame); ok {
		t.Fatal("first Lookup should miss")
	}
	r.Store(est)

	got, ok := r.Lookup(frame)
	if !ok || got != est {
		t.Errorf("Lookup(same) = %v, %v; want cached estimate", got, ok)
	}
}

func TestLookupDifferentFrameMisses(t *testing.T) {
	r := NewReuser(0, 0)
	r.Lookup(blocks(t, false))
	r.Store(&attention.Estimate{})

	if _, ok := r.Lookup(blocks(t, true)); ok {
		t.Error("inverted frame should not match")
	}
}

func TestReuseIsBounded(t *testing.T) {
	r := NewReuser(0, 2)
	frame := blocks(t, false)
	r.Lookup(frame)
	r.Store(nil)

	for i := 0; i < 2; i++ {
		if est, ok := r.Lookup(frame); !ok || est != nil {
			t.Fatalf("reuse %d = %v, %v; want cached no-face", i, est, ok)
		}
	}
	if _, ok := r.Lookup(frame); ok {
		t.Error("third consecutive reuse should force fresh inference")
	}
	r.Store(&attention.Estimate{})
	if _, ok := r.Lookup(frame); !ok {
		t.Error("Store should reset the reuse count")
	}
}

func TestUndecodableFrame(t *testing.T) {
	r := NewReuser(0, 0)
	if _, ok := r.Lookup([]byte("not a jpeg")); ok {
		t.Error("garbage input should miss")
	}
	r.Store(&attention.Estimate{})
	if _, ok := r.Lookup(blocks(t, false)); ok {
		t.Error("Store after a failed decode must not install a reference")
	}
}
