package services

import (
	context2 "context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/requiem-ai/relaybot/context"
	"github.com/requiem-ai/relaybot/history"
	"github.com/requiem-ai/relaybot/llm"
	"github.com/rs/zerolog/log"
)

// ChatService owns the completion client, the conversation store and the
// model selection. The model name is a single process-wide value shared by
// every channel; only the model command replaces it.
type ChatService struct {
	context.DefaultService

	client llm.Client
	store  *history.Store

	mu    sync.Mutex
	model string
}

const CHAT_SVC = "chat_svc"

const defaultModel = "deepseek-chat"

func (svc *ChatService) Id() string {
	return CHAT_SVC
}

func (svc *ChatService) Configure(ctx *context.Context) error {
	svc.model = os.Getenv("DEEPSEEK_MODEL")
	if svc.model == "" {
		svc.model = defaultModel
	}

	if os.Getenv("DEEPSEEK_API_KEY") == "" {
		log.Warn().Msg("DEEPSEEK_API_KEY is not set; completion calls will fail until it is")
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *ChatService) Start() error {
	svc.client = llm.NewDeepSeekClient()
	svc.store = history.NewStore()

	return nil
}

// Ask relays the question plus the channel's recent turns to the model and
// records the exchange. The reply is always user-safe text; completion
// failures come back as the client's apology replies and are stored like any
// other answer, matching what the user was shown.
func (svc *ChatService) Ask(channel string, question string) string {
	model := svc.Model()
	requestID := uuid.NewString()

	log.Info().
		Str("request_id", requestID).
		Str("channel", channel).
		Str("model", model).
		Int("question_len", len(question)).
		Msg("completion request")

	reply := svc.client.Complete(context2.TODO(), llm.Request{
		Model:   model,
		Prompt:  question,
		History: svc.store.Get(channel),
	})

	svc.store.Append(channel, question, reply)

	log.Info().
		Str("request_id", requestID).
		Str("channel", channel).
		Int("reply_len", len(reply)).
		Msg("completion reply")

	return reply
}

// Forget drops the channel's history. Reports whether there was any.
func (svc *ChatService) Forget(channel string) bool {
	return svc.store.Clear(channel)
}

func (svc *ChatService) Model() string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.model
}

func (svc *ChatService) SetModel(name string) {
	svc.mu.Lock()
	svc.model = name
	svc.mu.Unlock()

	log.Info().Str("model", name).Msg("model selection changed")
}
