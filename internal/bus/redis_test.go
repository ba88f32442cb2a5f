package bus

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	message []byte
}

type fakeClient struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sent = append(f.sent, published{channel, message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Emit(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "gesturelab")
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }

	require.NoError(t, p.Emit("hand_update", [][]map[string]float64{{{"x": 0.1, "y": 0.2, "z": 0}}}))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "gesturelab:hand_update", client.sent[0].channel)

	var msg struct {
		Event string                 `json:"event"`
		Data  [][]map[string]float64 `json:"data"`
		TS    int64                  `json:"ts"`
	}
	require.NoError(t, sonic.Unmarshal(client.sent[0].message, &msg))
	assert.Equal(t, "hand_update", msg.Event)
	assert.Equal(t, int64(1700000000000), msg.TS)
	assert.InDelta(t, 0.2, msg.Data[0][0]["y"], 1e-9)
}

func TestPublisher_EmitError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	p := newPublisher(client, "")

	err := p.Emit("camera_frame", map[string]string{"frame": "abc"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestPublisher_Channel(t *testing.T) {
	assert.Equal(t, "hand_update", newPublisher(&fakeClient{}, "").Channel("hand_update"))
	assert.Equal(t, "x:camera_frame", newPublisher(&fakeClient{}, "x").Channel("camera_frame"))
}

func TestPublisher_ActiveAndClose(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, "x")
	assert.True(t, p.Active())
	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}

func TestNewPublisher_BadURL(t *testing.T) {
	_, err := NewPublisher(context.Background(), "not-a-url", "x")
	assert.Error(t, err)
}

func TestNewPublisher_Integration(t *testing.T) {
	url := os.Getenv("GESTURELAB_TEST_REDIS_URL")
	if testing.Short() || url == "" {
		t.Skip("set GESTURELAB_TEST_REDIS_URL to run against a real Redis")
	}

	ctx := context.Background()
	p, err := NewPublisher(ctx, url, "gesturelab-test")
	require.NoError(t, err)
	defer p.Close()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	sub := redis.NewClient(opts).Subscribe(ctx, p.Channel("hand_update"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Emit("hand_update", []int{}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"event":"hand_update"`)
}
