package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/Brownie44l1/medscan-api/internal/model"
	"github.com/Brownie44l1/medscan-api/internal/preprocess"
)

// MockModel is a model.Model for tests
type MockModel struct {
	ForwardFunc func(input *preprocess.Tensor) ([]float32, error)
	// Class is the winning index of the default logits
	Class      int
	NumClasses int

	mu        sync.Mutex
	CallCount int
	Closed    bool
}

func (m *MockModel) Forward(input *preprocess.Tensor) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.ForwardFunc != nil {
		return m.ForwardFunc(input)
	}
	n := m.NumClasses
	if n == 0 {
		n = 11
	}
	// Default: a peaked distribution whose height depends on the input
	logits := make([]float32, n)
	var sum float32
	for _, v := range input.Data {
		sum += v
	}
	for i := range logits {
		logits[i] = float32(i) * 0.01
	}
	if m.Class >= 0 && m.Class < n {
		logits[m.Class] = 5 + sum/float32(len(input.Data)+1)
	}
	return logits, nil
}

func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockLoader hands out a fixed model and can fail a number of times first.
type MockLoader struct {
	Model    model.Model
	Failures int
	Err      error

	mu    sync.Mutex
	Calls int
	Paths []string
}

func (l *MockLoader) Load(path string) (model.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls++
	l.Paths = append(l.Paths, path)
	if l.Calls <= l.Failures {
		return nil, l.Err
	}
	return l.Model, nil
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func PNG(w, h int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, SolidImage(w, h, color.NRGBA{R: 120, G: 80, B: 200, A: 255}))
	return buf.Bytes()
}

// HugePNG returns a tiny PNG whose header claims w x h pixels.
func HugePNG(w, h uint32) []byte {
	out := PNG(2, 2)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, SolidImage(w, h, color.NRGBA{R: 30, G: 140, B: 90, A: 255}), nil)
	return buf.Bytes()
}
