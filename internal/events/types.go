package events

// Topic is a logical fanout channel. Every instance subscribes to every topic.
type Topic string

const (
	TopicChatMessages    Topic = "chat-messages"
	TopicChatRoomUpdates Topic = "chat-room-updates"
	TopicNotifications   Topic = "notifications"
)

// Topics returns all topics an instance must subscribe to.
func Topics() []Topic {
	return []Topic{TopicChatMessages, TopicChatRoomUpdates, TopicNotifications}
}

// Push types sent to clients in Envelope.Type.
const (
	PushNewMessage      = "new_message"
	PushChatUpdate      = "chat_update"
	PushNewChatRoom     = "new_chat_room"
	PushNewNotification = "new_notification"
	PushError           = "error"
)
