package chip

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Default label metrics, roughly matching a 14px chip with comfortable padding.
const (
	DefaultFontSize = 14.0
	DefaultPadX     = 14.0
	DefaultPadY     = 8.0
)

// Measurer derives chip base sizes from label text using the Go Regular font,
// so base sizes can be computed without a browser. It is safe for concurrent
// use.
type Measurer struct {
	mu       sync.Mutex
	face     font.Face
	padX     float64
	padY     float64
	lineH    float64
	fontSize float64
}

// NewMeasurer creates a measurer for the given font size (points at 72 DPI,
// i.e. pixels) and horizontal/vertical padding on each side.
func NewMeasurer(fontSize, padX, padY float64) (*Measurer, error) {
	if fontSize <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", fontSize)
	}
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	m := face.Metrics()
	return &Measurer{
		face:     face,
		padX:     padX,
		padY:     padY,
		lineH:    float64(m.Ascent+m.Descent) / 64,
		fontSize: fontSize,
	}, nil
}

// DefaultMeasurer returns a measurer with the default metrics.
func DefaultMeasurer() (*Measurer, error) {
	return NewMeasurer(DefaultFontSize, DefaultPadX, DefaultPadY)
}

// FontSize returns the configured font size.
func (m *Measurer) FontSize() float64 { return m.fontSize }

// Measure returns the base chip size for label, rounded up to whole pixels.
func (m *Measurer) Measure(label string) (w, h float64) {
	m.mu.Lock()
	adv := float64(font.MeasureString(m.face, label)) / 64
	m.mu.Unlock()
	w = math.Ceil(adv + 2*m.padX)
	h = math.Ceil(m.lineH + 2*m.padY)
	return w, h
}

// Item builds an unscaled inactive Item for name.
func (m *Measurer) Item(name string) Item {
	w, h := m.Measure(name)
	return Item{Name: name, BaseWidth: w, BaseHeight: h, Scale: 1, Plane: Inactive}
}
