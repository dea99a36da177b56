package services

import (
	"strings"
	"testing"

	tb "gopkg.in/telebot.v3"
)

// stubTBContext fakes the few telebot context methods the dispatcher touches.
type stubTBContext struct {
	tb.Context

	msg  *tb.Message
	chat *tb.Chat
	sent []string
}

func (s *stubTBContext) Message() *tb.Message { return s.msg }
func (s *stubTBContext) Chat() *tb.Chat       { return s.chat }
func (s *stubTBContext) Sender() *tb.User     { return nil }

func (s *stubTBContext) Send(what interface{}, _ ...interface{}) error {
	if text, ok := what.(string); ok {
		s.sent = append(s.sent, text)
	}
	return nil
}

func newDispatcher(reply string) (*TelegramService, *fakeClient) {
	chat, client := newTestChatService(reply)
	svc := &TelegramService{
		chat:     chat,
		prefix:   "!",
		helpText: buildHelpText("!"),
	}
	return svc, client
}

func inbound(text string) *stubTBContext {
	return &stubTBContext{
		msg:  &tb.Message{Text: text},
		chat: &tb.Chat{ID: 1},
	}
}

func TestDispatch_AskWithoutQuestion(t *testing.T) {
	svc, client := newDispatcher("unused")
	c := inbound("!ask")

	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(client.requests) != 0 {
		t.Errorf("completion client called %d times, want 0", len(client.requests))
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "Please provide a question") {
		t.Errorf("sent = %q, want the usage hint", c.sent)
	}
}

func TestDispatch_UnknownCommandIgnored(t *testing.T) {
	svc, client := newDispatcher("unused")
	c := inbound("!frobnicate now")

	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 0 || len(client.requests) != 0 {
		t.Errorf("unknown command produced activity: sent=%q calls=%d", c.sent, len(client.requests))
	}
}

func TestDispatch_UnprefixedTextIgnored(t *testing.T) {
	svc, client := newDispatcher("unused")
	c := inbound("just chatting")

	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 0 || len(client.requests) != 0 {
		t.Errorf("plain text produced activity: sent=%q calls=%d", c.sent, len(client.requests))
	}
}

func TestDispatch_ClearEmptyChannel(t *testing.T) {
	svc, _ := newDispatcher("unused")
	c := inbound("!clear")

	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || c.sent[0] != "No conversation history to clear." {
		t.Errorf("sent = %q", c.sent)
	}
}

func TestDispatch_Model(t *testing.T) {
	svc, _ := newDispatcher("unused")

	c := inbound("!model")
	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "Usage: !model") {
		t.Errorf("missing argument: sent = %q", c.sent)
	}

	c = inbound("!model one two")
	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "Usage: !model") {
		t.Errorf("extra arguments: sent = %q", c.sent)
	}
	if svc.chat.Model() == "one" {
		t.Error("model changed despite the usage error")
	}

	c = inbound("!model deepseek-reasoner")
	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || c.sent[0] != "Model set to: deepseek-reasoner" {
		t.Errorf("sent = %q", c.sent)
	}
	if svc.chat.Model() != "deepseek-reasoner" {
		t.Errorf("model = %q", svc.chat.Model())
	}
}

func TestDispatch_Help(t *testing.T) {
	svc, _ := newDispatcher("unused")
	c := inbound("!help")

	if err := svc.onMessage(c); err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 1 || c.sent[0] != svc.helpText {
		t.Errorf("sent = %q", c.sent)
	}
}

func TestParseCommand_Ask(t *testing.T) {
	name, arg, ok := parseCommand("!ask What is artificial intelligence?", "!")
	if !ok {
		t.Fatal("expected a command match")
	}
	if name != "ask" {
		t.Errorf("name = %q, want ask", name)
	}
	if arg != "What is artificial intelligence?" {
		t.Errorf("arg = %q", arg)
	}
}

func TestParseCommand_KeepsInteriorWhitespace(t *testing.T) {
	_, arg, ok := parseCommand("!ask what   is  AI?  ", "!")
	if !ok {
		t.Fatal("expected a command match")
	}
	if arg != "what   is  AI?" {
		t.Errorf("arg = %q, interior whitespace should be preserved", arg)
	}
}

func TestParseCommand_NoArgument(t *testing.T) {
	name, arg, ok := parseCommand("!clear", "!")
	if !ok || name != "clear" || arg != "" {
		t.Errorf("got (%q, %q, %v), want (clear, , true)", name, arg, ok)
	}
}

func TestParseCommand_NotRouted(t *testing.T) {
	cases := []string{
		"hello there",
		"ask without prefix",
		"!",
		"! ask spaced out",
		"",
	}
	for _, text := range cases {
		if _, _, ok := parseCommand(text, "!"); ok {
			t.Errorf("parseCommand(%q) matched, want ignored", text)
		}
	}
}

func TestParseCommand_CustomPrefix(t *testing.T) {
	name, arg, ok := parseCommand("?help", "?")
	if !ok || name != "help" || arg != "" {
		t.Errorf("got (%q, %q, %v), want (help, , true)", name, arg, ok)
	}
	if _, _, ok := parseCommand("!help", "?"); ok {
		t.Error("matched the wrong prefix")
	}
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("short reply", messageChunkLimit)
	if len(chunks) != 1 || chunks[0] != "short reply" {
		t.Errorf("got %d chunks %v", len(chunks), chunks)
	}
}

func TestSplitMessage_ExactLimit(t *testing.T) {
	text := strings.Repeat("a", messageChunkLimit)
	chunks := splitMessage(text, messageChunkLimit)
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(chunks))
	}
}

func TestSplitMessage_LongReply(t *testing.T) {
	text := strings.Repeat("x", 4500)
	chunks := splitMessage(text, messageChunkLimit)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantSizes := []int{2000, 2000, 500}
	for i, want := range wantSizes {
		if len(chunks[i]) != want {
			t.Errorf("chunk[%d] has %d chars, want %d", i, len(chunks[i]), want)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble to the original reply")
	}
}

func TestSplitMessage_NoWordBoundaryAwareness(t *testing.T) {
	text := strings.Repeat("ab ", 10)
	chunks := splitMessage(text, 4)
	if chunks[0] != "ab a" {
		t.Errorf("chunk[0] = %q, want the fixed-size cut %q", chunks[0], "ab a")
	}
}

func TestSplitMessage_Runes(t *testing.T) {
	// Multi-byte runes count as one character each.
	text := strings.Repeat("é", 5)
	chunks := splitMessage(text, 2)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0] != "éé" || chunks[2] != "é" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestBuildHelpText_ListsAllCommands(t *testing.T) {
	help := buildHelpText("!")
	for _, want := range []string{"!ask <question>", "!clear", "!model <model_name>", "!help"} {
		if !strings.Contains(help, want) {
			t.Errorf("help text missing %q", want)
		}
	}
	if !strings.Contains(help, "Example: !ask") {
		t.Error("help text missing the example invocation")
	}
}
