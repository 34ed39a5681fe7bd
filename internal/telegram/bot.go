package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/velikanov/calsec/internal/agent"
	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/calendar"
	"github.com/velikanov/calsec/internal/logging"
)

// pollTimeoutSeconds is the long-poll window passed to getUpdates.
const pollTimeoutSeconds = 30

// pollRetryDelay is how long the loop waits after a failed getUpdates
// call before retrying.
const pollRetryDelay = 3 * time.Second

// EventLister fetches the upcoming events for an authorized user. The
// default implementation builds a calendar client from the credential;
// tests substitute a fixture.
type EventLister func(ctx context.Context, cred *auth.StoredCredential) ([]calendar.EventSummary, error)

// Bot runs the chat command loop. It owns the long-polling cycle and
// dispatches incoming messages to command handlers or, for free-form
// text, to the conversational agent.
type Bot struct {
	client    *Client
	flows     *auth.FlowTracker
	creds     *auth.CredentialStore
	events    EventLister
	responder agent.Responder
	username  string
	logger    *slog.Logger
}

// BotConfig carries the collaborators a Bot needs.
type BotConfig struct {
	Client *Client
	Flows  *auth.FlowTracker
	Creds  *auth.CredentialStore
	// Events serves /events. When nil, a default lister backed by the
	// calendar client is installed.
	Events EventLister
	// Responder handles non-command text. When nil, the bot replies
	// with a short usage hint instead.
	Responder agent.Responder
	// Username is the bot's own @username, used to strip command
	// mentions in group chats. Optional.
	Username string
	Logger   *slog.Logger
}

// NewBot assembles a Bot from its collaborators.
func NewBot(cfg BotConfig) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = func(ctx context.Context, cred *auth.StoredCredential) ([]calendar.EventSummary, error) {
			c, err := calendar.NewClient(ctx, cred)
			if err != nil {
				return nil, err
			}
			return c.UpcomingEvents()
		}
	}
	return &Bot{
		client:    cfg.Client,
		flows:     cfg.Flows,
		creds:     cfg.Creds,
		events:    events,
		responder: cfg.Responder,
		username:  strings.TrimPrefix(cfg.Username, "@"),
		logger:    logger,
	}
}

// Run polls for updates until the context is canceled. Handler errors
// are logged and never terminate the loop.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset, pollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, u.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	user := auth.UserID(msg.From.ID)
	chat := msg.Chat.ID

	if msg.Voice != nil {
		b.reply(ctx, chat, "Voice messages are not supported yet. Please type your request as text.")
		return
	}

	switch b.command(msg.Text) {
	case "start":
		b.reply(ctx, chat, "Hi! I manage your Google Calendar from chat.\n"+
			"Use /login to connect your Google account, then just tell me what to schedule.")
	case "login":
		b.handleLogin(ctx, chat, user)
	case "events":
		b.handleEvents(ctx, chat, user)
	case "logout":
		b.handleLogout(ctx, chat, user)
	default:
		b.handleText(ctx, chat, user, msg.Text)
	}
}

// command extracts the bot command from a message text, stripping a
// trailing @username mention. Returns "" for non-command text. A command
// addressed to a different bot is ignored; without a configured username
// there is no way to tell a mention is ours, so every mentioned command
// is ignored.
func (b *Bot) command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if name, mention, ok := strings.Cut(cmd, "@"); ok {
		if b.username == "" || !strings.EqualFold(mention, b.username) {
			return ""
		}
		cmd = name
	}
	return strings.ToLower(cmd)
}

func (b *Bot) handleLogin(ctx context.Context, chat int64, user auth.UserID) {
	authURL, _, err := b.flows.Begin(user)
	if err != nil {
		b.logger.Error("authorization flow construction failed",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		b.reply(ctx, chat, "Could not start the authorization flow. Please try again later.")
		return
	}

	keyboard := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Authorize with Google", URL: authURL}},
		},
	}
	text := "Press the button to authorize:\n" +
		"1. Grant access to your Google account\n" +
		"2. You will be redirected back to Telegram\n" +
		"3. I will confirm once authorization succeeds"
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := b.client.SendMessageWithKeyboard(sendCtx, chat, text, keyboard); err != nil {
		b.logger.Warn("failed to send authorization link",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
	}
}

func (b *Bot) handleEvents(ctx context.Context, chat int64, user auth.UserID) {
	cred, ok := b.creds.Get(user)
	if !ok {
		b.reply(ctx, chat, "You are not authorized yet. Use /login first.")
		return
	}

	events, err := b.events(ctx, cred)
	if err != nil {
		b.logger.Warn("listing upcoming events failed",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		b.reply(ctx, chat, "Could not fetch your events. Try again or re-authorize with /login.")
		return
	}
	if len(events) == 0 {
		b.reply(ctx, chat, "You have no upcoming events.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your upcoming events:\n")
	for _, ev := range events {
		fmt.Fprintf(&sb, "%s  %s\n", ev.Start.Format(time.RFC3339), ev.Summary)
	}
	b.reply(ctx, chat, sb.String())
}

func (b *Bot) handleLogout(ctx context.Context, chat int64, user auth.UserID) {
	b.creds.Delete(user)
	b.reply(ctx, chat, "Your Google account has been disconnected. Use /login to reconnect.")
}

func (b *Bot) handleText(ctx context.Context, chat int64, user auth.UserID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if b.responder == nil {
		b.reply(ctx, chat, "I did not understand that. Try /login, /events, or describe a calendar action.")
		return
	}

	answer, err := b.responder.Respond(ctx, user, text)
	if err != nil {
		b.logger.Warn("agent response failed",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		b.reply(ctx, chat, "Sorry, I could not process that request. Please try again.")
		return
	}
	b.reply(ctx, chat, answer)
}

func (b *Bot) reply(ctx context.Context, chat int64, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := b.client.SendMessage(sendCtx, chat, text); err != nil {
		b.logger.Warn("failed to send reply",
			slog.Int64("chat_id", chat),
			logging.Err(err),
		)
	}
}
