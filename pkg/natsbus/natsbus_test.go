package natsbus

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/events"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/irctrakz/streammon/pkg/monitoring"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type memPublisher struct {
	subject string
	data    [][]byte
	err     error
}

func (m *memPublisher) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subject = subject
	m.data = append(m.data, data)
	return nil
}

func TestSubscriber_HandleMsg(t *testing.T) {
	host := monitoring.NewHostMetrics("h", "host", monitoring.DefaultConfig())
	s := NewSubscriber(nil, "streammon.events", events.NewDispatcher(host))

	msgs := []string{
		`{"type":"app_created","app":1,"app_name":"live"}`,
		`{"type":"stream_created","app":1,"stream":{"id":2,"name":"cam"}}`,
		`{"type":"session_connected","app":1,"stream":{"id":2},"publisher":"webrtc"}`,
		`garbage`,
		`{"type":"stream_deleted","app":1,"stream":{"id":99}}`,
	}
	for _, m := range msgs {
		s.handleMsg(&nats.Msg{Subject: "streammon.events", Data: []byte(m)})
	}

	received, rejected := s.Stats()
	assert.Equal(t, uint64(5), received)
	assert.Equal(t, uint64(2), rejected)
	assert.Equal(t, int64(1), host.GetConnections(core.PublisherWebRTC))
}

func TestPublisher_PublishInfo(t *testing.T) {
	host := monitoring.NewHostMetrics("h-1", "edge", monitoring.DefaultConfig())
	host.IncreaseBytesIn(77)

	mem := &memPublisher{}
	p := &Publisher{conn: mem, subject: "streammon.reports"}
	require.NoError(t, p.PublishInfo(host.GetInfo(false)))

	assert.Equal(t, "streammon.reports", mem.subject)
	require.Len(t, mem.data, 1)

	var got monitoring.Info
	require.NoError(t, json.Unmarshal(mem.data[0], &got))
	assert.Equal(t, "h-1", got.ID)
	assert.Equal(t, uint64(77), got.Counters.BytesIn)
}

func TestPublisher_PublishError(t *testing.T) {
	mem := &memPublisher{err: errors.New("nats: connection closed")}
	p := &Publisher{conn: mem, subject: "r"}
	err := p.PublishInfo(monitoring.Info{Kind: monitoring.KindHost})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}
