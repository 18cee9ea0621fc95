package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/feishu"
	"github.com/groupguard/feishu-guard/internal/api"
	"github.com/groupguard/feishu-guard/internal/biz/usecase"
	"github.com/groupguard/feishu-guard/internal/conf"
	"github.com/groupguard/feishu-guard/internal/data"
	"github.com/groupguard/feishu-guard/internal/server"
	"github.com/groupguard/feishu-guard/internal/service"
	"github.com/groupguard/feishu-guard/internal/state"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)

	repos, err := data.NewRepositories(feishuClient, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repositories")
	}
	defer repos.Audit.Close()

	store := state.NewStore(
		cfg.Bot.Admins,
		cfg.Moderation.AllowedLinkDomains,
		cfg.Bot.WelcomeTemplate,
		cfg.Bot.GoodbyeTemplate,
	)

	reminderSvc := service.NewReminderService(store, repos.Transport)

	modUC := usecase.NewModerationUsecase(store, repos.Audit, usecase.ModerationConfig{
		BannedWords:          cfg.Moderation.BannedWords,
		MaxMessagesPerMinute: cfg.Moderation.MaxMessagesPerMinute,
		MaxWarnings:          cfg.Moderation.MaxWarnings,
	})
	dispUC := usecase.NewDispatchUsecase(store, repos.Transport, repos.Completion, repos.Audit, reminderSvc, usecase.DispatchConfig{
		CommandPrefix: cfg.Bot.CommandPrefix,
		UserDomain:    cfg.Bot.UserDomain,
		BannedWords:   cfg.Moderation.BannedWords,
	})

	inboundSvc := service.NewInboundService(modUC, dispUC, store, service.InboundConfig{
		CommandPrefix: cfg.Bot.CommandPrefix,
		AIPrefix:      cfg.Bot.AIPrefix,
	})

	apiServer := api.NewServer(store, repos.Audit, repos.Completion != nil, cfg.APIPort)
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("api server error")
		}
	}()

	srv := server.NewGuardServer(feishuClient, repos.Transport, inboundSvc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		srv.Stop()
		apiServer.Stop()
		reminderSvc.Stop()
		repos.Audit.Close()
		os.Exit(0)
	}()

	log.Info().Str("command_prefix", cfg.Bot.CommandPrefix).
		Bool("ai_enabled", repos.Completion != nil).
		Msg("starting feishu-guard")

	apiServer.SetConnected(true)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
