package main

import (
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/approve"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/auth"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/bot"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/config"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/mtproto"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("creating telegram bot")
	}

	registry := session.NewRegistry()
	connector := mtproto.NewConnector(cfg.APIID, cfg.APIHash)
	pipeline := approve.NewPipeline(cfg.PageLimit, cfg.ApproveDelay)

	// The timeout notifier needs the bot service, which needs the auth
	// manager; the closure resolves the cycle since timeouts only fire
	// after Start.
	var svc *bot.BotService
	manager := auth.NewManager(registry, connector, cfg.LoginTimeout, func(operatorID int64, text string) {
		svc.Notify(operatorID, text)
	})
	svc = bot.New(botAPI, registry, manager, pipeline)

	log.Info().Str("bot", botAPI.Self.UserName).Msg("bot started")
	svc.Start()
}
