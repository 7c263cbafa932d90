package realtime

// Wire-level event names pushed to gateway connections.
const (
	EventNewMessage         = "newMessage"
	EventConversationCreate = "CONVERSATION_CREATE"
	EventConversationUpdate = "CONVERSATION_UPDATE"
	EventMemberAdd          = "MEMBER_ADD"
	EventMemberUpdate       = "MEMBER_UPDATE"
	EventMemberRemove       = "MEMBER_REMOVE"
	EventMemberLeave        = "MEMBER_LEAVE"
	EventIncomingCall       = "INCOMING_CALL"
	EventMemberVoiceJoin    = "MEMBER_VOICE_JOIN"
	EventMemberVoiceLeave   = "MEMBER_VOICE_LEAVE"
)

// Event is a single gateway frame: an event name plus its payload.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Room name builders. Rooms are derived from durable membership state and
// recomputed at connect time, never persisted.

// UserRoom is the personal room every connection of a user joins.
func UserRoom(userID string) string { return "user:" + userID }

// ConversationRoom carries conversation-level events (renames, member churn).
func ConversationRoom(conversationID string) string { return "conversation:" + conversationID }

// ChannelRoom carries channel-level events for a conversation's TEXT channel.
func ChannelRoom(channelID string) string { return "channel:" + channelID }

// ChannelMessagesRoom carries newMessage events for a TEXT channel.
func ChannelMessagesRoom(channelID string) string { return "channel/messages:" + channelID }

// VoiceChannelRoom carries voice presence events for a VOICE channel.
func VoiceChannelRoom(channelID string) string { return "voiceChannel:" + channelID }
