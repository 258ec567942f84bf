package service

// Event types pushed to websocket clients.
const (
	EventTaskCreated      = "task_created"
	EventTaskUpdated      = "task_updated"
	EventTaskDeleted      = "task_deleted"
	EventTasksBulkUpdated = "tasks_bulk_updated"
	EventTasksBulkDeleted = "tasks_bulk_deleted"
	EventUsageSynced      = "usage_synced"
	EventDockerSynced     = "docker_synced"
	EventJobGeocoded      = "job_geocoded"
	EventDevicesRevoked   = "devices_revoked"

	EventChatRoomCreated    = "chat_room_created"
	EventChatMessage        = "chat_message"
	EventChatMessageUpdated = "chat_message_updated"
	EventChatMessageDeleted = "chat_message_deleted"
	EventChatReaction       = "chat_reaction"
	EventChatTyping         = "chat_typing"
	EventChatRead           = "chat_read"
	EventChatLeft           = "chat_left"
)

// Publisher fans events out to connected clients.
type Publisher interface {
	PublishToUser(userID int64, eventType string, data any)
	PublishToStaff(eventType string, data any)
	Broadcast(eventType string, data any)
}

type nopPublisher struct{}

func (nopPublisher) PublishToUser(int64, string, any) {}
func (nopPublisher) PublishToStaff(string, any)       {}
func (nopPublisher) Broadcast(string, any)            {}

func publisherOrNop(p Publisher) Publisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
