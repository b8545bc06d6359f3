package notifier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

type fakeChannel struct {
	channelID string
	content   string
	err       error
}

func (f *fakeChannel) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channelID = channelID
	f.content = content
	return &discordgo.Message{}, f.err
}

func testEvent() model.Event {
	e := model.Event{ID: "e1", Title: "Tech Conference 2024", TotalSeats: 100, SeatsLeft: 0}
	e.SetStartsAt(time.Date(2030, 9, 1, 10, 0, 0, 0, time.UTC))
	return e
}

func TestFormatActivity(t *testing.T) {
	msg := FormatActivity(Activity{Kind: ActivityBooked, Username: "alice", Event: testEvent()})
	assert.Contains(t, msg, "New booking")
	assert.Contains(t, msg, "**User:** alice")
	assert.Contains(t, msg, "Tech Conference 2024")
	assert.Contains(t, msg, "2030-09-01 10:00")
	assert.Contains(t, msg, "100 booked, 0/100 left")

	soldOut := FormatActivity(Activity{Kind: ActivitySoldOut, Event: testEvent()})
	assert.Contains(t, soldOut, "Sold out")
	assert.NotContains(t, soldOut, "**User:**")
}

func TestDiscordNotifier(t *testing.T) {
	ch := &fakeChannel{}
	n := &DiscordNotifier{session: ch, channelID: "chan-1"}

	require.NoError(t, n.NotifyActivity(context.Background(), Activity{Kind: ActivityCancelled, Username: "bob", Event: testEvent()}))
	assert.Equal(t, "chan-1", ch.channelID)
	assert.Contains(t, ch.content, "Booking cancelled")

	ch.err = errors.New("rate limited")
	assert.Error(t, n.NotifyActivity(context.Background(), Activity{Kind: ActivityBooked, Event: testEvent()}))
}

func TestNewDiscordNotifier_RequiresCredentials(t *testing.T) {
	_, err := NewDiscordNotifier("", "chan")
	assert.Error(t, err)
	_, err = NewDiscordNotifier("token", "")
	assert.Error(t, err)
}

func TestLogNotifierAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logNotifier := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	failing := &DiscordNotifier{session: &fakeChannel{err: errors.New("down")}, channelID: "c"}
	err := Multi{failing, logNotifier}.NotifyActivity(context.Background(), Activity{Kind: ActivityBooked, Username: "alice", Event: testEvent()})
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "booking activity", "later notifiers still run")
	assert.Contains(t, buf.String(), "booked=100")

	buf.Reset()
	require.NoError(t, logNotifier.SendPasswordReset(context.Background(), model.User{ID: "u1", Email: "a@example.com"}, "tok", time.Now()))
	assert.Contains(t, buf.String(), "password reset token issued")
	assert.Contains(t, buf.String(), "tok")
}
