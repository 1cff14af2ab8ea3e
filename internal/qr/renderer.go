// Package qr renders the ticket QR image.
package qr

import (
	"encoding/base64"
	"fmt"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

const dataURLPrefix = "data:image/png;base64,"

type Artifact struct {
	PNG     []byte
	DataURL string
}

type Renderer struct {
	Size       int
	Foreground color.Color
	Background color.Color
	Level      qrcode.RecoveryLevel
}

// NewRenderer uses the venue palette: parchment modules on near-black.
func NewRenderer() *Renderer {
	return &Renderer{
		Size:       360,
		Foreground: color.RGBA{R: 0xef, G: 0xe4, B: 0xc8, A: 0xff},
		Background: color.RGBA{R: 0x0f, G: 0x0c, B: 0x0a, A: 0xff},
		Level:      qrcode.Medium,
	}
}

func (r *Renderer) Render(content string) (*Artifact, error) {
	code, err := qrcode.New(content, r.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	code.ForegroundColor = r.Foreground
	code.BackgroundColor = r.Background

	png, err := code.PNG(r.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr png: %w", err)
	}
	return &Artifact{
		PNG:     png,
		DataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(png),
	}, nil
}
