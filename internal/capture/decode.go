package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned for an empty image payload.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrInvalidBase64 is returned when the payload is not base64.
	ErrInvalidBase64 = errors.New("frame is not valid base64")
	// ErrUndecodableImage is returned when the bytes are not an image OpenCV can read.
	ErrUndecodableImage = errors.New("frame is not a decodable image")
)

// StripDataURL removes a "data:<mime>;base64," prefix if present.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DecodeBytes decodes a base64 image (standard or raw encoding, with or
// without a data URL prefix) into raw image bytes.
func DecodeBytes(s string) ([]byte, error) {
	s = StripDataURL(s)
	if s == "" {
		return nil, ErrEmptyFrame
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	return data, nil
}

// DecodeBase64 decodes a base64 image into a BGR Mat.
// The caller is responsible for closing the returned Mat.
func DecodeBase64(s string) (*gocv.Mat, error) {
	data, err := DecodeBytes(s)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrUndecodableImage
	}
	return &mat, nil
}

// Mirror flips the frame horizontally in place so the preview behaves like a mirror.
func Mirror(frame *gocv.Mat) {
	gocv.Flip(*frame, frame, 1)
}
