package logger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	require.Error(t, err)
}

func TestLogger_WritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.With(String("feed", "R_10")).Info("sample",
		Int("digit", 7),
		Float64("quote", 6342.17),
		Bool("alert", true),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "R_10", line["feed"])
	assert.Equal(t, float64(7), line["digit"])
	assert.Equal(t, 6342.17, line["quote"])
	assert.Equal(t, true, line["alert"])
	assert.Equal(t, float64(1500), line["took"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "sample", line["message"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")
	log.Info("hidden")
	assert.Zero(t, buf.Len())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNop_Discards(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Error("nothing", String("k", "v"))
	})
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollector_AggregatesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	log := NewWithWriter(&bytes.Buffer{}, "debug")
	log.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		log.Error("subscribe failed", String("feed", "R_25"))
	}
	log.Info("not collected")

	assert.Equal(t, 1, log.collector.Pending())
	log.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, 3, pub.batches[0][0].Count)
	assert.Equal(t, "R_25", pub.batches[0][0].Fields["feed"])
}
