// Command giftsniper runs the Telegram collectible gift sniping engine.
// It polls marketplace listings for configured gift targets and buys the
// cheapest affordable listing on behalf of the configured sender account.
//
// Usage:
//
//	giftsniper --config gifts.yaml
//	giftsniper --setup (interactive configuration wizard)
//
// Optional environment variables:
//
//	TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID enable operator notifications
//	via a Telegram bot; without them events are only logged.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/tgstars/giftsniper/config"
	"github.com/tgstars/giftsniper/internal"
	"github.com/tgstars/giftsniper/internal/clients"
	"github.com/tgstars/giftsniper/internal/market"
	"github.com/tgstars/giftsniper/internal/services/notifier"
	"github.com/tgstars/giftsniper/internal/setup"
)

func main() {
	configPath := flag.String("config", "gifts.yaml", "path to the config document")
	journalDir := flag.String("journal", "journal", "directory for the purchase intent journal")
	platform := flag.String("platform", "simulate", "marketplace platform (simulate)")
	startBalance := flag.Int64("balance", 1000, "starting stars balance for the simulated platform")
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard and exit")
	flag.Parse()

	store, err := config.NewStore(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if *runSetup {
		if err := setup.RunTUI(store); err != nil {
			log.Fatal(err)
		}
		return
	}

	var session market.Session
	switch *platform {
	case "simulate":
		sim := clients.NewSimulateSession(*startBalance)
		sim.SetReady(true)
		session = sim
	default:
		log.Fatal("unsupported platform")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var notify notifier.Notifier = notifier.NewLog(logger.Named("notifier"))
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if err != nil {
			log.Fatal("TELEGRAM_CHAT_ID must be set to a numeric chat id when TELEGRAM_BOT_TOKEN is set")
		}
		tg, err := notifier.NewTelegram(token, chatID, logger.Named("notifier"))
		if err != nil {
			log.Fatal(err)
		}
		notify = tg
	}

	bot, err := internal.NewGiftBot(store, session, notify, *journalDir, logger)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
