package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// channelSender is the part of *discordgo.Session the notifier uses.
type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts booking activity to a Discord channel.
type DiscordNotifier struct {
	session   channelSender
	channelID string
}

// NewDiscordNotifier opens a bot session for token. The session is used for
// REST calls only, so no gateway connection is opened.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord token and channel id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

// NotifyActivity posts the formatted activity to the configured channel.
func (n *DiscordNotifier) NotifyActivity(ctx context.Context, a Activity) error {
	if n.session == nil {
		return errors.New("discord session is nil")
	}
	_, err := n.session.ChannelMessageSend(n.channelID, FormatActivity(a), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

// FormatActivity renders an activity as a Discord message.
func FormatActivity(a Activity) string {
	var b strings.Builder
	switch a.Kind {
	case ActivityBooked:
		b.WriteString("🎟️ **New booking**\n")
	case ActivityCancelled:
		b.WriteString("↩️ **Booking cancelled**\n")
	case ActivitySoldOut:
		b.WriteString("🔥 **Sold out**\n")
	default:
		fmt.Fprintf(&b, "**%s**\n", a.Kind)
	}
	if a.Username != "" {
		fmt.Fprintf(&b, "**User:** %s\n", a.Username)
	}
	fmt.Fprintf(&b, "**Event:** %s\n**When:** %s %s\n**Seats:** %d booked, %d/%d left",
		a.Event.Title,
		a.Event.Date,
		a.Event.Time,
		a.Event.Booked(),
		a.Event.SeatsLeft,
		a.Event.TotalSeats,
	)
	return b.String()
}
