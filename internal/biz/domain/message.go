package domain

import "time"

// ChatKind distinguishes one-to-one chats from group chats
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// MsgType is the coarse type tag of an inbound message
type MsgType string

const (
	MsgText          MsgType = "text"
	MsgNote          MsgType = "note"
	MsgSystem        MsgType = "system"
	MsgPicture       MsgType = "picture"
	MsgRecording     MsgType = "recording"
	MsgVideo         MsgType = "video"
	MsgFriendRequest MsgType = "friend_request"
	MsgOther         MsgType = "other"
)

// Message is an inbound message event. It is owned by the platform and read-only here.
type Message struct {
	ID       string
	ChatID   string // Group ID for group chats, counterpart ID for direct chats
	ChatKind ChatKind
	Type     MsgType
	Sender   User  // Direct author (the bot itself when FromSelf); the group for group messages
	Member   *User // In-group author, nil for direct chats
	Text     string

	CreateTime  time.Time // Time the platform stamped on the message
	ReceiveTime time.Time // Time the bot received it

	IsAt       bool   // Message @-mentions the bot
	FromSelf   bool   // Sent by the bot account itself
	VerifyText string // Verification text of a friend request
}

// IsGroup checks if the message was posted in a group chat
func (m *Message) IsGroup() bool {
	return m.ChatKind == ChatGroup
}

// EffectiveSender returns the in-group member for group chats, otherwise the sender
func (m *Message) EffectiveSender() User {
	if m.IsGroup() && m.Member != nil {
		return *m.Member
	}
	return m.Sender
}

// Latency is the delay between the platform timestamp and receipt
func (m *Message) Latency() time.Duration {
	if m.CreateTime.IsZero() || m.ReceiveTime.IsZero() {
		return 0
	}
	return m.ReceiveTime.Sub(m.CreateTime)
}
