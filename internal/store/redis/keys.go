package redis

// Persisted key layout: one key for the serialized board, one expiring
// key per online user, one expiring key per locked card.
const (
	boardKey       = "board:state"
	presencePrefix = "presence:"
	lockPrefix     = "lock:"
)

// EventsChannel is the pub/sub channel every hub instance publishes
// accepted events to and subscribes to, including the publisher.
const EventsChannel = "board:events"

func presenceKey(userID string) string {
	return presencePrefix + userID
}

func lockKey(cardID string) string {
	return lockPrefix + cardID
}
