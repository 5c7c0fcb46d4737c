package gateway

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/rahul/glide/internal/observability"
)

// Discord rejects messages longer than this.
const discordMaxMessage = 2000

// DiscordGateway serves the router over Discord channels and DMs. Chat ids
// are channel ids.
type DiscordGateway struct {
	Session *discordgo.Session
	Router  *Router
	Logger  *observability.Logger
	format  TextFormatter
	stop    chan struct{}
}

func NewDiscordGateway(token string, router *Router, logger *observability.Logger) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	// Handlers run on the event loop, one message at a time.
	session.SyncEvents = true

	dg := &DiscordGateway{
		Session: session,
		Router:  router,
		Logger:  logger,
		format:  MarkdownFormatter(),
		stop:    make(chan struct{}),
	}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) Name() string {
	return "discord"
}

func (dg *DiscordGateway) Formatter() Formatter {
	return dg.format
}

// Start connects and blocks until Stop is called.
func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Discord connected as %s", dg.Session.State.User.Username)
	<-dg.stop
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}

	chatID := ChatID(dg.Name(), m.ChannelID)
	dg.Logger.LogGateway(dg.Name(), chatID, m.Content)

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Printf("Error sending typing indicator: %v", err)
	}

	progress := func(msg string) {
		if err := dg.sendNative(m.ChannelID, dg.format.Text(msg)); err != nil {
			log.Printf("Error sending progress: %v", err)
		}
	}

	reply := dg.Router.Handle(context.Background(), chatID, m.Content, dg.format, progress)
	if err := dg.sendNative(m.ChannelID, reply); err != nil {
		log.Printf("Error sending reply to %s: %v", chatID, err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	_, channelID, err := SplitChatID(chatID)
	if err != nil {
		return err
	}
	return dg.sendNative(channelID, text)
}

func (dg *DiscordGateway) sendNative(channelID, text string) error {
	for _, part := range chunk(text, discordMaxMessage) {
		if _, err := dg.Session.ChannelMessageSend(channelID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	select {
	case <-dg.stop:
	default:
		close(dg.stop)
	}
	return dg.Session.Close()
}
