package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Girirajbhatt/careerhub/pkg/logger"
)

// recordingWriter captures messages instead of sending them to a broker.
type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w messageWriter) *Producer {
	return &Producer{
		writer:  w,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newProducerMetrics(prometheus.NewRegistry()),
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// --- Event ---

var identityAgg = Aggregate{Type: "identity", ID: "id-1"}

func TestNewEvent_Fields(t *testing.T) {
	type registered struct {
		IdentityID string `json:"identity_id"`
		Role       string `json:"role"`
	}

	data := registered{IdentityID: "id-1", Role: "student"}
	event, err := NewEvent("identity-service", "identity.registered", identityAgg, data)
	require.NoError(t, err)

	id, err := uuid.Parse(event.EventID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, "identity.registered", event.EventType)
	assert.Equal(t, "id-1", event.AggregateID)
	assert.Equal(t, "identity", event.AggregateType)
	assert.Equal(t, SchemaVersion, event.Version)
	assert.Equal(t, []byte("id-1"), event.Key())
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got registered
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("svc", "identity.registered", identityAgg, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity.registered")
}

func TestEvent_FromRequestAndMetadata(t *testing.T) {
	event, err := NewEvent("svc", "identity.logged_out", identityAgg, nil)
	require.NoError(t, err)

	ctx := logger.WithCorrelationID(context.Background(), "corr-xyz")
	result := event.FromRequest(ctx).WithMetadata("client_ip", "10.0.0.1").WithMetadata("empty", "")

	assert.Same(t, event, result)
	assert.Equal(t, "corr-xyz", event.CorrelationID)
	assert.Equal(t, map[string]string{"client_ip": "10.0.0.1"}, event.Metadata)
}

// --- Topic ---

func TestTopic(t *testing.T) {
	assert.Equal(t, "careerhub.identity.registered", Topic("identity", "registered"))
	assert.Equal(t, "careerhub", TopicPrefix)
}

// --- Producer ---

func TestDefaultProducerConfig(t *testing.T) {
	brokers := []string{"broker1:9092", "broker2:9092"}
	cfg := DefaultProducerConfig(brokers)

	assert.Equal(t, brokers, cfg.Brokers)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestProducer_Publish_WritesKeyedMessage(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)
	topic := "test.publish.ok"

	event, err := NewEvent("identity-service", "identity.registered", Aggregate{Type: "identity", ID: "id-42"}, map[string]string{"role": "student"})
	require.NoError(t, err)
	event.FromRequest(logger.WithCorrelationID(context.Background(), "corr-1"))

	require.NoError(t, p.Publish(context.Background(), topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "id-42", string(msg.Key))
	assert.Equal(t, "identity.registered", headerValue(msg, HeaderEventType))
	assert.Equal(t, "identity-service", headerValue(msg, HeaderSource))
	assert.Equal(t, "corr-1", headerValue(msg, HeaderCorrelationID))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.published.WithLabelValues(topic, "identity.registered")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.metrics.duration))
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newTestProducer(w)
	topic := "test.publish.fail"

	event, err := NewEvent("svc", "identity.registered", identityAgg, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), topic, event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), topic)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.failed.WithLabelValues(topic, "identity.registered")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.metrics.published.WithLabelValues(topic, "identity.registered")))
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotDial(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestPingBrokers_ReportsEveryBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PingBrokers(ctx, []string{"127.0.0.1:1", "127.0.0.1:2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
	assert.Contains(t, err.Error(), "127.0.0.1:2")
}

func TestPublish_UnencodableEventCountsFailure(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)
	event := &Event{EventType: "identity.registered", Data: json.RawMessage("{not json")}

	require.Error(t, p.Publish(context.Background(), "test.encode", event))
	assert.Empty(t, w.msgs)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.failed.WithLabelValues("test.encode", "identity.registered")))
}
