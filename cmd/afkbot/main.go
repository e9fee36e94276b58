package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	sloggger "github.com/hectorgimenez/afkbot/cmd/afkbot/log"
	"github.com/hectorgimenez/afkbot/internal/bot"
	"github.com/hectorgimenez/afkbot/internal/config"
	"github.com/hectorgimenez/afkbot/internal/event"
	"github.com/hectorgimenez/afkbot/internal/game"
	"github.com/hectorgimenez/afkbot/internal/remote/discord"
	ngrokremote "github.com/hectorgimenez/afkbot/internal/remote/ngrok"
	"github.com/hectorgimenez/afkbot/internal/remote/telegram"
	"github.com/hectorgimenez/afkbot/internal/server"
	"golang.org/x/sync/errgroup"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, debug.Stack()))
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {
	if buildID != "" {
		config.Version = fmt.Sprintf("%s (%s)", buildID, buildTime)
	}

	if err := config.Load(); err != nil {
		log.Fatalf("Error loading configuration: %s", err.Error())
	}
	cfg := config.Get()

	logger, err := sloggger.NewLogger(cfg.Debug.Log, cfg.LogSaveDirectory, "")
	if err != nil {
		log.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	eventListener := event.NewListener(logger)

	dial := func(ctx context.Context) (game.Conn, error) {
		b, err := game.DialBridge(ctx, game.BridgeOptions{
			URL: cfg.Bridge.URL,
			Login: game.LoginInfo{
				Username: cfg.Account.Username,
				Password: cfg.Account.Password,
				AuthType: cfg.Account.AuthType,
				Host:     cfg.Server.Host,
				Port:     cfg.Server.Port,
				Version:  cfg.Server.Version,
			},
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	manager := bot.NewSupervisorManager(cfg, dial, logger)
	srv := server.New(logger, manager)

	var ngrokTunnel *ngrokremote.Tunnel
	if cfg.Ngrok.Enabled {
		if cfg.Ngrok.Authtoken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
			logger.Warn("ngrok enabled but no authtoken set; skipping tunnel start")
		} else {
			opts := ngrokremote.LocalOptions(cfg.HTTP.Port)
			opts.Authtoken = cfg.Ngrok.Authtoken
			opts.Region = cfg.Ngrok.Region
			opts.Domain = cfg.Ngrok.Domain
			opts.BasicAuthUser = cfg.Ngrok.BasicAuthUser
			opts.BasicAuthPass = cfg.Ngrok.BasicAuthPass

			tunnel, err := ngrokremote.Start(ctx, opts)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				logger.Info("ngrok tunnel established", slog.String("url", tunnel.URL()))
				if cfg.Ngrok.SendURL {
					go event.Send(event.NgrokTunnel(tunnel.URL()))
				}
			}
			ngrokTunnel = tunnel
		}
	}

	// Discord Bot initialization
	if cfg.Discord.Enabled {
		discordBot, err := discord.NewBot(discord.Options{
			Token:                  cfg.Discord.Token,
			Username:               cfg.Account.Username,
			ChannelID:              cfg.Discord.ChannelID,
			BotAdmins:              cfg.Discord.BotAdmins,
			UseWebhook:             cfg.Discord.UseWebhook,
			WebhookURL:             cfg.Discord.WebhookURL,
			EnableSessionMessages:  cfg.Discord.EnableSessionMessages,
			EnableKickMessages:     cfg.Discord.EnableKickMessages,
			EnableDeathMessages:    cfg.Discord.EnableDeathMessages,
			EnableAuthFailMessages: cfg.Discord.EnableAuthFailMessages,
		}, manager)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
		} else {
			eventListener.Register(discordBot.Handle)
			if !cfg.Discord.UseWebhook {
				g.Go(wrapWithRecover(logger, func() error {
					return discordBot.Start(ctx)
				}))
			}
		}
	}

	// Telegram Bot initialization
	if cfg.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(ctx, cfg.Telegram.Token, cfg.Telegram.ChatID, manager, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
		} else {
			eventListener.Register(telegramBot.Handle)
			g.Go(wrapWithRecover(logger, func() error {
				defer telegramBot.Close()
				return telegramBot.Start(ctx)
			}))
		}
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return srv.Listen(cfg.HTTP.Port)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return eventListener.Listen(ctx)
	}))

	if err := manager.Start(); err != nil {
		logger.Error("Error starting bot", slog.Any("error", err))
	}

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("afkbot shutting down...")
		manager.Stop()
		err := srv.Stop()
		if err != nil {
			logger.Error("error stopping local server", slog.Any("error", err))
		}
		if ngrokTunnel != nil {
			if closeErr := ngrokTunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}

		return err
	}))

	if err := g.Wait(); err != nil {
		logger.Error("Error running afkbot", slog.Any("error", err))
	}
}
