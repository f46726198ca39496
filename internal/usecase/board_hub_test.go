package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/internal/domain/models"
)

func TestBoardHub_FanOutPerFeed(t *testing.T) {
	h := NewBoardHub(2)
	a := h.Subscribe("R_10")
	b := h.Subscribe("R_10")
	other := h.Subscribe("R_25")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	h.Publish(models.Board{Feed: "R_10", Samples: 1})

	assert.Equal(t, uint64(1), (<-a.C()).Samples)
	assert.Equal(t, uint64(1), (<-b.C()).Samples)
	assert.Empty(t, other.C())
}

func TestBoardHub_SlowSubscriberKeepsNewest(t *testing.T) {
	h := NewBoardHub(2)
	s := h.Subscribe("R_10")
	defer s.Close()

	for i := 1; i <= 5; i++ {
		h.Publish(models.Board{Feed: "R_10", Samples: uint64(i)})
	}

	require.Len(t, s.C(), 2)
	assert.Equal(t, uint64(4), (<-s.C()).Samples)
	assert.Equal(t, uint64(5), (<-s.C()).Samples)
}

func TestBoardHub_CloseDetaches(t *testing.T) {
	h := NewBoardHub(1)
	s := h.Subscribe("R_10")
	assert.Equal(t, 1, h.Subscribers("R_10"))

	s.Close()
	s.Close()
	assert.Zero(t, h.Subscribers("R_10"))
	_, ok := <-s.C()
	assert.False(t, ok)

	assert.NotPanics(t, func() { h.Publish(models.Board{Feed: "R_10"}) })
}
