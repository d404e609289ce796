package market

const (
	TopicBroadcastEvents = "market.events.broadcast"
	TopicUserEvents      = "market.events.user"
)

// Partition key = target id, so events for one room keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
