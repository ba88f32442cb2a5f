package capture

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantFPS int
	}{
		{name: "defaults", opts: Options{}, wantFPS: DefaultFPS},
		{name: "explicit rate", opts: Options{DeviceID: 1, FPS: 15}, wantFPS: 15},
		{name: "negative rate falls back", opts: Options{FPS: -3}, wantFPS: DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.opts)
			require.NotNil(t, cam)
			assert.Equal(t, tt.wantFPS, cam.FPS())
			assert.False(t, cam.IsOpen(), "camera should not be running initially")
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(Options{})

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 10", fps: 10, wantFPS: 10},
		{name: "set to 60", fps: 60, wantFPS: 60},
		{name: "set to 0 should keep previous", fps: 0, wantFPS: 60},
		{name: "set to negative should keep previous", fps: -5, wantFPS: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)
			assert.Equal(t, tt.wantFPS, cam.FPS())
		})
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(Options{})

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)
	assert.NoError(t, cam.Close(), "closing an unopened camera is a no-op")
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(Options{})

	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}
	assert.True(t, cam.IsOpen())

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Logf("ReadFrame() failed on an opened device: %v", err)
	} else {
		assert.False(t, mat.Empty())
		if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("frame dimensions: %dx%d (camera may not support 640x480)", mat.Cols(), mat.Rows())
		}
		mat.Close()
	}

	require.NoError(t, cam.Close())
	assert.False(t, cam.IsOpen())
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURL("data:image/jpeg;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURL("  QUJD\n"))
	assert.Equal(t, "data:broken", StripDataURL("data:broken"))
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "padded", in: "aGVsbG8=", want: "hello"},
		{name: "unpadded", in: "aGVsbG8", want: "hello"},
		{name: "data url", in: "data:image/png;base64,aGVsbG8=", want: "hello"},
		{name: "empty", in: "", wantErr: ErrEmptyFrame},
		{name: "prefix only", in: "data:image/png;base64,", wantErr: ErrEmptyFrame},
		{name: "not base64", in: "%%%%", wantErr: ErrInvalidBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBytes(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	src := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer src.Close()
	buf, err := gocv.IMEncode(gocv.PNGFileExt, src)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(buf.GetBytes())
	buf.Close()

	t.Run("decodes image", func(t *testing.T) {
		mat, err := DecodeBase64(encoded)
		require.NoError(t, err)
		defer mat.Close()
		assert.Equal(t, 64, mat.Cols())
		assert.Equal(t, 48, mat.Rows())
	})

	t.Run("rejects non-image bytes", func(t *testing.T) {
		_, err := DecodeBase64(base64.StdEncoding.EncodeToString([]byte("plain text")))
		assert.ErrorIs(t, err, ErrUndecodableImage)
	})
}

func TestMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV")
	}

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 2, 2, gocv.MatTypeCV8UC1)
	defer mat.Close()
	mat.SetUCharAt(0, 0, 200)

	Mirror(&mat)

	assert.Equal(t, uint8(0), mat.GetUCharAt(0, 0))
	assert.Equal(t, uint8(200), mat.GetUCharAt(0, 1))
}
