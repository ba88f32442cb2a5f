// Package render annotates frames with hand landmarks and encodes previews.
package render

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/Ankur3509/GestureLab/internal/detector"
	"gocv.io/x/gocv"
)

// Connection joins two landmark indices.
type Connection struct {
	From, To int
}

// Connections is the MediaPipe hand skeleton.
var Connections = []Connection{
	{detector.Wrist, detector.ThumbCMC},
	{detector.ThumbCMC, detector.ThumbMCP},
	{detector.ThumbMCP, detector.ThumbIP},
	{detector.ThumbIP, detector.ThumbTip},
	{detector.Wrist, detector.IndexMCP},
	{detector.IndexMCP, detector.IndexPIP},
	{detector.IndexPIP, detector.IndexDIP},
	{detector.IndexDIP, detector.IndexTip},
	{detector.IndexMCP, detector.MiddleMCP},
	{detector.MiddleMCP, detector.MiddlePIP},
	{detector.MiddlePIP, detector.MiddleDIP},
	{detector.MiddleDIP, detector.MiddleTip},
	{detector.MiddleMCP, detector.RingMCP},
	{detector.RingMCP, detector.RingPIP},
	{detector.RingPIP, detector.RingDIP},
	{detector.RingDIP, detector.RingTip},
	{detector.RingMCP, detector.PinkyMCP},
	{detector.Wrist, detector.PinkyMCP},
	{detector.PinkyMCP, detector.PinkyPIP},
	{detector.PinkyPIP, detector.PinkyDIP},
	{detector.PinkyDIP, detector.PinkyTip},
}

// Drawing style.
var (
	PointColor = color.RGBA{R: 255, G: 255, B: 0, A: 255} // yellow
	LineColor  = color.RGBA{R: 255, G: 0, B: 255, A: 255} // magenta
)

const (
	thickness    = 2
	circleRadius = 2
)

// PixelPoint maps a normalized landmark onto a width x height image.
func PixelPoint(lm detector.Landmark, width, height int) image.Point {
	x := int(lm.X * float64(width))
	y := int(lm.Y * float64(height))
	return image.Pt(clampInt(x, 0, width-1), clampInt(y, 0, height-1))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DrawHands draws the skeleton of every hand onto frame in place.
func DrawHands(frame *gocv.Mat, hands []detector.Hand) {
	if frame == nil || frame.Empty() {
		return
	}
	w, h := frame.Cols(), frame.Rows()

	for i := range hands {
		pts := &hands[i].Points
		for _, c := range Connections {
			gocv.Line(frame, PixelPoint(pts[c.From], w, h), PixelPoint(pts[c.To], w, h), LineColor, thickness)
		}
		for _, lm := range pts {
			gocv.Circle(frame, PixelPoint(lm, w, h), circleRadius, PointColor, thickness)
		}
	}
}

// EncodeJPEG resizes frame to width x height (when both are positive) and
// encodes it as JPEG at the given quality.
func EncodeJPEG(frame *gocv.Mat, width, height, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("encode preview: empty frame")
	}

	src := *frame
	if width > 0 && height > 0 && (frame.Cols() != width || frame.Rows() != height) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(*frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, src, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// EncodePreview is EncodeJPEG followed by standard base64 encoding.
func EncodePreview(frame *gocv.Mat, width, height, quality int) (string, error) {
	data, err := EncodeJPEG(frame, width, height, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
