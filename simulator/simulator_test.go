package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/infra/mqtt"
	"github.com/BusBom/rpi-server/qa/scenarios"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type recordPub struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (r *recordPub) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.bodies = append(r.bodies, payload.([]byte))
	return doneToken{}
}

func (r *recordPub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

const script = `
name: sim
station_id: "7"
steps:
  - status: [0, 0]
    queue: ["12"]
  - advance_ms: 1000
    status: [1, 0]
  - advance_ms: 1000
    fetch_error: true
    queue_error: true
`

func newTestStop(t *testing.T, loop bool) (*Stop, *time.Time) {
	t.Helper()
	sc, err := scenarios.Parse([]byte(script))
	require.NoError(t, err)
	s := NewStop(sc, loop)
	now := s.start
	s.now = func() time.Time { return now }
	return s, &now
}

func get(t *testing.T, s *Stop, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	s.Routes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestStopTimeline(t *testing.T) {
	s, now := newTestStop(t, false)

	var st model.StopStatus
	rr := get(t, s, "/stop-status")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "7", st.StationID)
	assert.Equal(t, []int{0, 0}, st.Platforms.Ints())

	*now = now.Add(1500 * time.Millisecond)
	rr = get(t, s, "/stop-status")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, []int{1, 0}, st.Platforms.Ints())

	rr = get(t, s, "/sequence")
	ids, err := decodeSequence(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, ids)

	*now = now.Add(time.Hour)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/stop-status").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/sequence").Code)
}

func TestStopLoops(t *testing.T) {
	s, now := newTestStop(t, true)
	*now = now.Add(2*time.Second + loopHold + 100*time.Millisecond)
	var st model.StopStatus
	rr := get(t, s, "/stop-status")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, []int{0, 0}, st.Platforms.Ints())
}

func decodeSequence(b []byte) ([]string, error) {
	var body struct {
		Sequence []string `json:"sequence"`
	}
	err := json.Unmarshal(b, &body)
	return body.Sequence, err
}

func TestDisplayAcksInstructions(t *testing.T) {
	codec, err := mqtt.NewCodec("json")
	require.NoError(t, err)
	payload, err := codec.Encode(mqtt.NewInstructionMessage("m-1", model.Instructions{Displays: []string{"12", " "}}))
	require.NoError(t, err)

	var shown []string
	pub := &recordPub{}
	d := &Display{Codec: codec, AckTopic: "busbom/ack", Strategy: AutoAck{}, Out: func(s string) { shown = append(shown, s) }}
	rendered, err := d.Handle(context.Background(), pub, payload)
	require.NoError(t, err)
	assert.Equal(t, `"12":" "`, rendered)
	assert.Equal(t, []string{`"12":" "`}, shown)

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "busbom/ack", pub.topics[0])
	assert.JSONEq(t, `{"message_id":"m-1"}`, string(pub.bodies[0]))

	_, err = d.Handle(context.Background(), pub, []byte("nope"))
	require.Error(t, err)
}

func TestRandomAckDropsAll(t *testing.T) {
	pub := &recordPub{}
	RandomAck{DropRate: 1}.Ack(context.Background(), pub, "ack", "m")
	assert.Zero(t, pub.count())
}

func TestAckCancelledDuringDelay(t *testing.T) {
	pub := &recordPub{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	AutoAck{Delay: time.Second}.Ack(ctx, pub, "ack", "m")
	assert.Zero(t, pub.count())
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Scenario: "a.yaml"}
	require.NoError(t, cfg.Validate())
	cfg.DropRate = 2
	require.Error(t, cfg.Validate())
	cfg = Config{Scenario: "a.yaml", AckTopic: "ack"}
	require.Error(t, cfg.Validate())
	require.Error(t, (&Config{}).Validate())
}
