package gateway

import (
	"fmt"
	"strings"

	"github.com/rahul/glide/internal/flow"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Name is the prefix of the chat ids the gateway issues.
	Name() string
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
	// Formatter renders replies for the gateway's markup.
	Formatter() Formatter
}

// ChatID namespaces a transport-native id so flows of a Telegram chat and a
// Discord channel never share an owner.
func ChatID(gateway, nativeID string) string {
	return gateway + ":" + nativeID
}

// SplitChatID reverses ChatID.
func SplitChatID(chatID string) (gateway, nativeID string, err error) {
	gateway, nativeID, ok := strings.Cut(chatID, ":")
	if !ok || gateway == "" || nativeID == "" {
		return "", "", fmt.Errorf("invalid chat ID: %s", chatID)
	}
	return gateway, nativeID, nil
}

// Mux routes outgoing messages to the gateway that issued the chat id.
type Mux struct {
	gateways map[string]Messenger
}

func NewMux(gateways ...Messenger) *Mux {
	m := &Mux{gateways: make(map[string]Messenger)}
	for _, g := range gateways {
		m.gateways[g.Name()] = g
	}
	return m
}

func (m *Mux) lookup(chatID string) (Messenger, error) {
	name, _, err := SplitChatID(chatID)
	if err != nil {
		return nil, err
	}
	g, ok := m.gateways[name]
	if !ok {
		return nil, fmt.Errorf("no gateway %q for chat %s", name, chatID)
	}
	return g, nil
}

func (m *Mux) Send(chatID string, text string) error {
	g, err := m.lookup(chatID)
	if err != nil {
		return err
	}
	return g.Send(chatID, text)
}

// FormatTodaysPath renders next steps in the markup of chatID's gateway.
func (m *Mux) FormatTodaysPath(chatID string, next []flow.NextStep) string {
	g, err := m.lookup(chatID)
	if err != nil {
		return PlainFormatter().TodaysPath(next)
	}
	return g.Formatter().TodaysPath(next)
}
