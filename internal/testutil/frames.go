// Package testutil builds synthetic camera frames for tests.
package testutil

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"
)

// Frame dimensions matching the default camera.
const (
	Width  = 640
	Height = 480
)

// SolidFrame returns a BGR frame filled with a single gray level.
func SolidFrame(level float64) *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, level, level, 0), Height, Width, gocv.MatTypeCV8UC3)
	return &m
}

// JPEG encodes a solid frame.
func JPEG(level float64) ([]byte, error) {
	m := SolidFrame(level)
	defer m.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Base64 returns a solid frame as a base64 JPEG, the format clients send.
func Base64(level float64) (string, error) {
	data, err := JPEG(level)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL returns a solid frame as a data:image/jpeg URL.
func DataURL(level float64) (string, error) {
	b64, err := Base64(level)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + b64, nil
}

// Sequence returns n solid frames with increasing brightness.
func Sequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		frames[i] = SolidFrame(float64(20 + i*10%200))
	}
	return frames
}
