package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/requiem-ai/relaybot/context"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tb "gopkg.in/telebot.v3"
)

// TelegramService is the command dispatcher: it inspects every inbound text
// for the configured command prefix, routes the four known commands and
// ignores everything else. Handler failures never take the connection down;
// the guard turns them into a reply.
type TelegramService struct {
	context.DefaultService

	Bot *tb.Bot

	chat *ChatService

	prefix   string
	helpText string
}

const TELEGRAM_SVC = "telegram_svc"

const defaultCommandPrefix = "!"

// messageChunkLimit caps a single outbound message. Longer replies are sent
// as consecutive fixed-size chunks with no word-boundary awareness.
const messageChunkLimit = 2000

func (svc TelegramService) Id() string {
	return TELEGRAM_SVC
}

func (svc *TelegramService) Configure(ctx *context.Context) (err error) {
	token := strings.TrimSpace(os.Getenv("TELEGRAM_SECRET"))
	if token == "" {
		return fmt.Errorf("TELEGRAM_SECRET is not set; refusing to start")
	}

	svc.prefix = os.Getenv("COMMAND_PREFIX")
	if svc.prefix == "" {
		svc.prefix = defaultCommandPrefix
	}
	svc.helpText = buildHelpText(svc.prefix)

	svc.Bot, err = tb.NewBot(tb.Settings{
		Token: token,
		Poller: &tb.LongPoller{
			Timeout: 30 * time.Second,
		},
		OnError: func(err error, c tb.Context) {
			svc.decorateTelegramEvent(log.Error().Err(err), c).Msg("telegram bot error")
		},
	})
	if err != nil {
		return err
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *TelegramService) Start() error {
	svc.chat = svc.Service(CHAT_SVC).(*ChatService)

	svc.Bot.Handle(tb.OnText, svc.guardHandler(svc.onMessage))

	svc.sendOnlineMessage()

	svc.Bot.Start()

	return nil
}

func (svc *TelegramService) Shutdown() {
	if svc.Bot == nil {
		return
	}
	svc.Bot.Stop()
}

// guardHandler logs every inbound update and keeps handler faults local:
// whatever a handler returns is reported back into the chat instead of
// propagating to the poller.
func (svc *TelegramService) guardHandler(fn tb.HandlerFunc) tb.HandlerFunc {
	return func(c tb.Context) error {
		if c != nil {
			svc.decorateTelegramEvent(log.Info(), c).Msg("inbound telegram update")
		}

		if err := fn(c); err != nil {
			svc.decorateTelegramEvent(log.Error().Err(err), c).Msg("telegram handler returned error")
			if c == nil {
				return err
			}
			return c.Send(fmt.Sprintf("An error occurred: %s", err.Error()), replyOptions(c))
		}

		return nil
	}
}

func (svc *TelegramService) decorateTelegramEvent(event *zerolog.Event, c tb.Context) *zerolog.Event {
	if event == nil || c == nil {
		return event
	}

	if chat := c.Chat(); chat != nil {
		event = event.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
	}

	if sender := c.Sender(); sender != nil {
		event = event.Int64("user_id", sender.ID).Str("sender_username", sender.Username)
	}

	if msg := c.Message(); msg != nil {
		event = event.
			Int("thread_id", msg.ThreadID).
			Str("message_text", msg.Text)
		if name, _, ok := parseCommand(msg.Text, svc.prefix); ok {
			event = event.Str("command", name)
		}
	}

	return event
}

// sendOnlineMessage announces the bot on the main chat once at startup,
// the platform's closest analog to a presence/status line.
func (svc *TelegramService) sendOnlineMessage() {
	raw := strings.TrimSpace(os.Getenv("TELEGRAM_MAIN_CHAT_ID"))
	if raw == "" {
		log.Info().Msg("skipping online message: main chat id not configured")
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Error().Err(err).Str("value", raw).Msg("invalid TELEGRAM_MAIN_CHAT_ID")
		return
	}

	message := strings.TrimSpace(os.Getenv("TELEGRAM_ONLINE_MESSAGE"))
	if message == "" {
		message = fmt.Sprintf("Bot is online. Send %shelp for commands.", svc.prefix)
	}

	if _, err := svc.Bot.Send(&tb.Chat{ID: chatID}, message); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send online message")
		return
	}

	log.Info().Int64("chat_id", chatID).Msg("sent online message to main chat")
}

func (svc *TelegramService) onMessage(c tb.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	if sender := c.Sender(); sender != nil && sender.ID == svc.Bot.Me.ID {
		return nil
	}

	name, arg, ok := parseCommand(msg.Text, svc.prefix)
	if !ok {
		return nil
	}

	switch name {
	case "ask":
		return svc.onAsk(c, arg)
	case "clear":
		return svc.onClear(c)
	case "model":
		return svc.onModel(c, arg)
	case "help":
		return svc.onHelp(c)
	default:
		// Unknown commands are not routed.
		return nil
	}
}

func (svc *TelegramService) onAsk(c tb.Context, question string) error {
	if question == "" {
		return c.Send(
			fmt.Sprintf("Please provide a question after the command. Example: %sask What is AI?", svc.prefix),
			replyOptions(c),
		)
	}

	_ = svc.Bot.Notify(c.Chat(), tb.Typing, threadOf(c))

	reply := svc.chat.Ask(channelKey(c), question)

	opts := replyOptions(c)
	for _, chunk := range splitMessage(reply, messageChunkLimit) {
		if err := c.Send(chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

func (svc *TelegramService) onClear(c tb.Context) error {
	if svc.chat.Forget(channelKey(c)) {
		return c.Send("Conversation history cleared!", replyOptions(c))
	}
	return c.Send("No conversation history to clear.", replyOptions(c))
}

func (svc *TelegramService) onModel(c tb.Context, arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 1 {
		return c.Send(fmt.Sprintf("Usage: %smodel <model_name>", svc.prefix), replyOptions(c))
	}

	// No validation of the name here; a bad model surfaces on the next ask.
	svc.chat.SetModel(fields[0])
	return c.Send(fmt.Sprintf("Model set to: %s", fields[0]), replyOptions(c))
}

func (svc *TelegramService) onHelp(c tb.Context) error {
	return c.Send(svc.helpText, replyOptions(c))
}

func buildHelpText(prefix string) string {
	return fmt.Sprintf(`DeepSeek Relay Commands:
%[1]sask <question> - Ask DeepSeek a question
%[1]sclear - Clear conversation history for this channel
%[1]smodel <model_name> - Change the DeepSeek model
%[1]shelp - Show this help message

Example: %[1]sask What is artificial intelligence?`, prefix)
}

// parseCommand splits "<prefix><name> <arg>" into its parts. The argument is
// the untouched remainder after the command name, trimmed at both ends only,
// so ask questions keep their interior whitespace.
func parseCommand(text, prefix string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}

	rest := strings.TrimPrefix(text, prefix)
	if rest == "" {
		return "", "", false
	}

	idx := strings.IndexFunc(rest, unicode.IsSpace)
	if idx == 0 {
		// Whitespace right after the prefix; not a command.
		return "", "", false
	}
	if idx < 0 {
		return rest, "", true
	}

	return rest[:idx], strings.TrimSpace(rest[idx:]), true
}

// splitMessage chunks text into consecutive rune slices of at most limit,
// in order. A short text comes back as a single chunk.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// channelKey scopes conversations to chat+thread so every forum topic keeps
// its own history.
func channelKey(c tb.Context) string {
	chat := c.Chat()
	if chat == nil {
		return ""
	}
	return fmt.Sprintf("%d:%d", chat.ID, threadOf(c))
}

func threadOf(c tb.Context) int {
	msg := c.Message()
	if msg == nil || !msg.TopicMessage {
		return 0
	}
	return msg.ThreadID
}

func replyOptions(c tb.Context) *tb.SendOptions {
	return &tb.SendOptions{ThreadID: threadOf(c)}
}
