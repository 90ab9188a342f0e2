package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("")
	assert.Equal(t, "call-1", ids.Next())
	assert.Equal(t, "call-2", ids.Next())

	ids.Reset()
	assert.Equal(t, "call-1", ids.Next())
}

func TestSequentialIDs_Concurrent(t *testing.T) {
	ids := NewSequentialIDs("op")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := ids.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.True(t, seen["op-50"])
}

func TestSequentialIDs_Last(t *testing.T) {
	ids := NewSequentialIDs("")
	assert.Empty(t, ids.Last())
	ids.Next()
	ids.Next()
	assert.Equal(t, "call-2", ids.Last())
}
