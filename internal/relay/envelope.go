package relay

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	kit "relaybot/internal/transport"
)

// Relay kinds (which menu flow the message came from).
const (
	KindBots    = "bots"
	KindVserv   = "vserv"
	KindFree    = "free"
	KindChat    = "chat"
	KindCall    = "call"
	KindGeneral = "general"
)

// Envelope is one relay unit: who sent it, which flow, and the payload.
// Exactly one payload form is set: CopyFrom for a single message (copied
// verbatim, any content type) or Album for a coalesced media group.
type Envelope struct {
	SourceUserID   int64
	SourceUsername string
	SourceFullName string
	Kind           string

	CopyFrom *kit.MessageRef

	Album        []kit.AlbumItem
	AlbumCaption string

	// Summary is a short content description for the audit log
	// (message text, caption, or "album(n)").
	Summary string
}

// ReplyToken builds the correlation token carried on the header's reply
// button. It embeds the source user id, so routing an admin reply back
// needs no persisted lookup table.
func ReplyToken(userID int64) string {
	return "reply|" + strconv.FormatInt(userID, 10)
}

// ParseReplyToken extracts the target user id from a reply token.
func ParseReplyToken(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(data, "reply|")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Header renders the admin-facing info block in HTML.
func (e *Envelope) Header() string {
	name := strings.TrimSpace(e.SourceFullName)
	if name == "" {
		name = "-"
	}
	uname := "-"
	if e.SourceUsername != "" {
		uname = "@" + e.SourceUsername
	}
	kind := e.Kind
	if kind == "" {
		kind = KindGeneral
	}
	return fmt.Sprintf(
		"\U0001F4EC New message from <a href=\"tg://user?id=%d\">%s</a>\n"+
			"\U0001F194 ID: <code>%d</code>\n"+
			"\U0001F464 Username: %s\n"+
			"Section: %s\n\n"+
			"— use the button below to reply —",
		e.SourceUserID, html.EscapeString(name), e.SourceUserID,
		html.EscapeString(uname), html.EscapeString(kind),
	)
}
