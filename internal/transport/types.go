// Package transport defines the platform-neutral message types and the
// Adapter interface the relay core talks to. The Telegram binding lives in
// transport/telegram.
package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// IsGroup reports whether the chat is a (super)group.
func (k ChatKind) IsGroup() bool { return k == ChatGroup || k == ChatSupergroup }

type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaDocument  MediaKind = "document"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaAnimation MediaKind = "animation"
	MediaSticker   MediaKind = "sticker"
)

// Media is a platform file reference attached to a message.
type Media struct {
	Kind   MediaKind
	FileID string
}

type Message struct {
	ID           int
	ChatID       int64
	ChatKind     ChatKind
	ChatTitle    string
	ChatUsername string

	FromID        int64
	FromUsername  string
	FromFirstName string
	FromLastName  string

	Text    string
	Caption string
	Media   *Media

	// AlbumID groups the parts of one multi-media submission
	// (Telegram media_group_id). Empty for standalone messages.
	AlbumID string
}

// Ref returns the message's own chat/message reference.
func (m *Message) Ref() MessageRef {
	return MessageRef{ChatID: m.ChatID, MessageID: m.ID}
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline-keyboard button. Exactly one of Data (callback) or
// URL should be set.
type Button struct {
	Text string
	Data string
	URL  string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       [][]Button
}

// AlbumItem is one part of an outgoing media group.
type AlbumItem struct {
	Kind   MediaKind
	FileID string
}

// Adapter is the transport collaborator the relay core consumes. All calls
// are best-effort; failures are returned, never retried here.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// Username returns the bot's own username (for deep links); empty until
	// Start has connected.
	Username() string

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	CopyMessage(ctx context.Context, to ChatTarget, src MessageRef, opt *SendOptions) (MessageRef, error)
	SendAlbum(ctx context.Context, to ChatTarget, items []AlbumItem, caption string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
