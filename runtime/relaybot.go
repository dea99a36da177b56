package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/requiem-ai/relaybot/context"
	"github.com/requiem-ai/relaybot/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded; using process environment")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})
	zerolog.TimeFieldFormat = time.RFC3339
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch logLevel {
	case "trace":
		log.Info().Str("level", logLevel).Msg("Setting Log Level")
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		log.Info().Str("level", logLevel).Msg("Setting Log Level")
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		fallthrough
	default:
		log.Info().Str("level", logLevel).Msg("Setting Log Level")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msg("Starting RelayBot")

	ctx, err := context.NewCtx(
		&services.SetupService{},
		&services.ChatService{},
		&services.TelegramService{},
	)

	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
