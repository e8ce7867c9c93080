package asynciter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock(t *testing.T) {
	s := &SystemClock{}
	before := time.Now()

	millis := s.NowInMillis()
	nanos := s.NowInNano()

	assert.GreaterOrEqual(t, millis, before.UnixMilli())
	assert.GreaterOrEqual(t, nanos, before.UnixNano())
	assert.LessOrEqual(t, millis, time.Now().UnixMilli())
}

// manualClock advances by step on every reading.
type manualClock struct {
	now  int64
	step int64
}

func (m *manualClock) NowInMillis() int64 {
	m.now += m.step
	return m.now
}

func (m *manualClock) NowInNano() int64 {
	return m.NowInMillis() * int64(time.Millisecond)
}
