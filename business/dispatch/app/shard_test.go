package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arb-core/business/dispatch/domain"
)

func taskWithSymbol(symbol string) domain.ProcessingTask {
	return domain.ProcessingTask{Opportunity: opportunityWithSymbol(symbol)}
}

func TestShard_PushAndDrainFIFO(t *testing.T) {
	s := newShard(3)
	require.False(t, s.push(taskWithSymbol("a")))
	require.False(t, s.push(taskWithSymbol("b")))

	batch := s.drainBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].Opportunity.Symbol)
	assert.Equal(t, "b", batch[1].Opportunity.Symbol)
}

func TestShard_DropsOldestOnOverflow(t *testing.T) {
	s := newShard(2)
	require.False(t, s.push(taskWithSymbol("a")))
	require.False(t, s.push(taskWithSymbol("b")))
	require.True(t, s.push(taskWithSymbol("c"))) // drops "a"

	batch := s.drainBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Opportunity.Symbol)
	assert.Equal(t, "c", batch[1].Opportunity.Symbol)
	assert.EqualValues(t, 1, s.droppedCount())
}

func TestShard_DrainBatchRespectsMax(t *testing.T) {
	s := newShard(5)
	for _, sym := range []string{"a", "b", "c"} {
		s.push(taskWithSymbol(sym))
	}
	batch := s.drainBatch(2)
	assert.Len(t, batch, 2)
	assert.Equal(t, 1, s.len())
}
