package supervisor

import (
	"hash/fnv"

	"github.com/macrokit/macroguard/internal/logger"
	"github.com/macrokit/macroguard/internal/macro"
)

const (
	defaultShards   = 4
	defaultCapacity = 256
)

// shard is one ingestion queue plus the worker that drains it. Macros are
// hashed onto shards by id, so events for the same macro are always
// processed in submission order by the same worker; cross-macro ordering
// is unspecified.
type shard struct {
	ch chan macro.Event
}

func newShards(count, capacity int) []*shard {
	if count <= 0 {
		count = defaultShards
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	shards := make([]*shard, count)
	for i := range shards {
		shards[i] = &shard{ch: make(chan macro.Event, capacity)}
	}
	return shards
}

func shardFor(shards []*shard, macroID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(macroID))
	return shards[int(h.Sum32())%len(shards)]
}

// offer enqueues an event without ever blocking the producer. When the
// shard is full the oldest queued event is dropped to make room: under
// overload the supervisor stays responsive and lossy rather than lossless.
// Returns the number of events dropped (0 or 1, rarely 2 under races).
func (s *shard) offer(event macro.Event) int {
	select {
	case s.ch <- event:
		return 0
	default:
	}

	dropped := 0
	select {
	case old := <-s.ch:
		dropped++
		logger.Debug().
			Str("macro", old.MacroID).
			Time("ts", old.Timestamp).
			Msg("Ingestion queue full, dropped oldest event")
	default:
	}

	select {
	case s.ch <- event:
	default:
		// Lost the race to another producer; drop the new event instead
		dropped++
		logger.Debug().
			Str("macro", event.MacroID).
			Msg("Ingestion queue full, dropped incoming event")
	}

	return dropped
}
