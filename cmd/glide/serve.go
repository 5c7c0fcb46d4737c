package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rahul/glide/internal/agent"
	"github.com/rahul/glide/internal/gateway"
	"github.com/rahul/glide/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram and Discord bots with the live dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.WithOutput(observability.NewTermWriter())

	router := gateway.NewRouter(a.flows, a.companion, a.store, a.logger)

	var gateways []gateway.Messenger
	if tgCfg, ok := a.cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, router, a.logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, ok := a.cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, router, a.logger)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		return fmt.Errorf("no gateway is enabled: configure telegram or discord")
	}
	mux := gateway.NewMux(gateways...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := agent.NewScheduler(a.store, a.flows, mux, mux.FormatTodaysPath)
	if a.cfg.Reminders.PollInterval > 0 {
		scheduler.Interval = a.cfg.Reminders.PollInterval
	}
	go scheduler.Start(ctx)

	// Live dashboard (1-second updates)
	go every(ctx, time.Second, observability.PrintLiveStatus)
	go every(ctx, 30*time.Second, func() {
		observability.Heartbeat()
		a.logger.LogHeartbeat()
	})

	for _, gw := range gateways {
		go func(gw gateway.Messenger) {
			if err := gw.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] %s GATEWAY CRITICAL ERROR: %v\033[0m", gw.Name(), err)
				stop()
			}
		}(gw)
	}

	<-ctx.Done()

	for _, gw := range gateways {
		if err := gw.Stop(); err != nil {
			log.Printf("Error stopping %s: %v", gw.Name(), err)
		}
	}

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] GLIDE SHUT DOWN. GOODBYE.\033[0m")
	return nil
}

func every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
