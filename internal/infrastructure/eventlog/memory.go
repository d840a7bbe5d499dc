package eventlog

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// DefaultPartitions matches the deployment default for the order topics.
const DefaultPartitions = 3

type record struct {
	key   string
	value []byte
}

type group struct {
	offsets []int
	busy    []bool
	notify  chan struct{}
}

// MemoryLog is an in-process Log with the same delivery contract as the
// Kafka implementation: keyed partitioning, per-partition FIFO per
// consumer group, earliest start, redelivery while the handler errors.
// It backs tests and single-process runs.
type MemoryLog struct {
	mu         sync.Mutex
	partitions int
	topics     map[string][][]record
	groups     map[string]map[string]*group
}

func NewMemoryLog(partitions int) *MemoryLog {
	if partitions <= 0 {
		partitions = DefaultPartitions
	}
	return &MemoryLog{
		partitions: partitions,
		topics:     make(map[string][][]record),
		groups:     make(map[string]map[string]*group),
	}
}

func (l *MemoryLog) partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()) % l.partitions
}

func (l *MemoryLog) topicPartitions(topic string) [][]record {
	if _, ok := l.topics[topic]; !ok {
		l.topics[topic] = make([][]record, l.partitions)
	}
	return l.topics[topic]
}

func (l *MemoryLog) Produce(ctx context.Context, topic, key string, payload []byte) error {
	value := make([]byte, len(payload))
	copy(value, payload)

	l.mu.Lock()
	parts := l.topicPartitions(topic)
	p := l.partition(key)
	parts[p] = append(parts[p], record{key: key, value: value})
	for _, g := range l.groups[topic] {
		select {
		case g.notify <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()
	return nil
}

func (l *MemoryLog) joinGroup(topic, groupID string) *group {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.topicPartitions(topic)
	if l.groups[topic] == nil {
		l.groups[topic] = make(map[string]*group)
	}
	g, ok := l.groups[topic][groupID]
	if !ok {
		g = &group{
			offsets: make([]int, l.partitions),
			busy:    make([]bool, l.partitions),
			notify:  make(chan struct{}, 1),
		}
		l.groups[topic][groupID] = g
	}
	return g
}

// claim finds a partition with an undelivered record not currently
// being processed by another member of the group.
func (l *MemoryLog) claim(topic string, g *group) (int, record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	parts := l.topics[topic]
	for p := 0; p < l.partitions; p++ {
		if g.busy[p] || g.offsets[p] >= len(parts[p]) {
			continue
		}
		g.busy[p] = true
		return p, parts[p][g.offsets[p]], true
	}
	return 0, record{}, false
}

func (l *MemoryLog) release(g *group, p int, advance bool) {
	l.mu.Lock()
	if advance {
		g.offsets[p]++
	}
	g.busy[p] = false
	l.mu.Unlock()
}

func (l *MemoryLog) Subscribe(ctx context.Context, topic, groupID string, handler Handler) error {
	g := l.joinGroup(topic, groupID)

	for {
		p, rec, ok := l.claim(topic, g)
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.notify:
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		err := handler(ctx, []byte(rec.key), rec.value)
		l.release(g, p, err == nil)
		if err != nil {
			// Redelivery after a short pause, like an uncommitted offset.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
}

func (l *MemoryLog) Close() error { return nil }
