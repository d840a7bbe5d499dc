package eventlog

import "context"

// Handler processes one delivered record. Returning an error leaves the
// record unacknowledged, so the log redelivers it. Consumers that want
// to drop a poison payload log it and return nil.
type Handler func(ctx context.Context, key, value []byte) error

// Log is a partitioned, ordered, at-least-once publish/subscribe log.
// Records with the same key land in the same partition and are
// delivered to each consumer group in publish order.
type Log interface {
	// Produce appends a record to hash(key) mod N of the topic.
	Produce(ctx context.Context, topic, key string, payload []byte) error

	// Subscribe delivers each record of the topic to exactly one member
	// of the group, at least once, starting from the earliest offset.
	// It blocks until ctx is cancelled.
	Subscribe(ctx context.Context, topic, groupID string, handler Handler) error

	Close() error
}
