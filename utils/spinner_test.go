package utils

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinner_DisabledPrintsOnlyStopMessage(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{
		mu:       &sync.RWMutex{},
		delay:    time.Millisecond,
		writer:   &buf,
		message:  "converting",
		disabled: true,
		stopChan: make(chan struct{}, 1),
	}
	s.Start()
	s.StopMsg = "done"
	s.Stop()

	assert.Equal(t, "done", buf.String())
}

func TestSpinner_StartStop(t *testing.T) {
	var buf syncBuffer
	s := &Spinner{
		mu:       &sync.RWMutex{},
		delay:    time.Millisecond,
		writer:   &buf,
		message:  "converting",
		stopChan: make(chan struct{}, 1),
	}
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.StopMsg = "done"
	s.Stop()

	assert.Contains(t, buf.String(), "converting")
	assert.Contains(t, buf.String(), "done")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_NoFrameAfterStop(t *testing.T) {
	var buf syncBuffer
	s := &Spinner{
		mu:      &sync.RWMutex{},
		delay:   time.Microsecond,
		writer:  &buf,
		message: "converting",
	}
	for i := 0; i < 20; i++ {
		s.Start()
		time.Sleep(time.Millisecond)
		s.StopMsg = "done"
		s.Stop()
		time.Sleep(2 * time.Millisecond)

		assert.True(t, strings.HasSuffix(buf.String(), "done"), "run %d", i)
	}
}
