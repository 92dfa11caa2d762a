package bot

import (
	"fmt"

	"relaybot/internal/content"
	"relaybot/internal/relay"
	kit "relaybot/internal/transport"
)

const (
	textWelcome  = "Hello!\nI'm the secretary bot. Use the menu below to reach the administrators."
	textMenu     = "Pick one of the options:"
	textMenuHint = "Use /menu to get started."

	textAskPayload   = "Please send your message, file or album. Cancel: /cancel"
	textAskAgain     = "Send your new message or file. Cancel: /cancel"
	textCancelled    = "Cancelled."
	textSent         = "✅ Your request was sent to the administrators."
	textBlocked      = "You are blocked."
	textNoAdmins     = "No administrator is registered yet."
	textUnauthorized = "Not authorized."

	textFreeIntro = "\U0001F5E3 Open conversation\n" +
		"Write your question or topic; I'll pass it to an administrator and you'll get the answer right here."

	textGroupPing = "Hi, I'm the secretary bot. Message me privately and I'll pass it on to the owner."

	textAskRules     = "Send the new text for this section. Cancel: /cancel"
	textRulesSaved   = "✅ Text saved."
	textAskBroadcast = "Send the message to broadcast to all users. Cancel: /cancel"
	textAskGroupcast = "Send the message to broadcast to all registered groups. Cancel: /cancel"

	btnSectionBots  = "\U0001F916 Bots"
	btnSectionSouls = "\U0001F4AC Souls group"
	btnSectionVserv = "\U0001F6CD Virtual services"
	btnSectionFree  = "\U0001F5E3 Open conversation"

	btnSoulsChat = "Request chat admin"
	btnSoulsCall = "Request call admin"

	btnAcceptSend = "✅ Accept and send request"
	btnCancel     = "❌ Cancel"
	btnQuickSend  = "✉️ Send message"
	btnSendAgain  = "✉️ Send another message"
	btnBackToMenu = "⬅️ Main menu"
)

const userHelp = `Help:
- /start or /menu: show the menu.
- Pick a section, press "Send message" and write your request.
- In groups, mentioning the trigger word posts a link to this bot.`

const adminHelp = `
Admin commands:
- /setrules <section> <sub>: edit section text (/setbots, /setvserv, /setsouls shortcuts).
- /broadcast: message all users.
- /groupsend: message all registered groups.
- /listgroups: list registered groups.
- /stats: user/group counts.
- /addadmin <id>, /deladmin <id>, /block <id>, /unblock <id>
- /reply <id>: reply to a user directly.
- /cancel: cancel the current action.`

// Callback data prefixes. The reply|<id> token is owned by the relay
// package (correlation token); the rest are menu navigation.
const (
	cbMenu  = "main|menu"
	cbSec   = "sec|"
	cbSouls = "souls|"
	cbAct   = "act|"
	cbAgain = "again|start"
)

func mainMenuKB() [][]kit.Button {
	return [][]kit.Button{
		{{Text: btnSectionBots, Data: cbSec + content.SectionBots}},
		{{Text: btnSectionSouls, Data: cbSec + content.SectionSouls}},
		{{Text: btnSectionVserv, Data: cbSec + content.SectionVserv}},
		{{Text: btnSectionFree, Data: cbSec + content.SectionFree}},
	}
}

func soulsSubmenuKB() [][]kit.Button {
	return [][]kit.Button{
		{{Text: btnSoulsChat, Data: cbSouls + content.SubChat}},
		{{Text: btnSoulsCall, Data: cbSouls + content.SubCall}},
		{{Text: btnBackToMenu, Data: cbMenu}},
	}
}

// afterRulesKB is the accept/cancel pair shown under the Souls rules.
func afterRulesKB(kind string) [][]kit.Button {
	return [][]kit.Button{
		{{Text: btnAcceptSend, Data: cbAct + "send|" + kind}},
		{{Text: btnCancel, Data: cbAct + "cancel|" + kind}},
	}
}

func quickSendKB(kind string) [][]kit.Button {
	return [][]kit.Button{
		{{Text: btnQuickSend, Data: cbAct + "send|" + kind}},
		{{Text: btnBackToMenu, Data: cbMenu}},
	}
}

func sendAgainKB() [][]kit.Button {
	return [][]kit.Button{
		{{Text: btnSendAgain, Data: cbAgain}},
	}
}

func deepLinkKB(botUsername string) [][]kit.Button {
	if botUsername == "" {
		return nil
	}
	return [][]kit.Button{
		{{Text: "Message the secretary", URL: fmt.Sprintf("https://t.me/%s?start=start", botUsername)}},
	}
}

func replyAgainKB(userID int64) [][]kit.Button {
	return [][]kit.Button{
		{{Text: "✉️ Reply again", Data: relay.ReplyToken(userID)}},
	}
}
