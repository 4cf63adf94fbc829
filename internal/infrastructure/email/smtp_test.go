package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(t *testing.T, sendErr error) (*SMTPMailer, *captured) {
	t.Helper()
	m, err := NewSMTPMailer(config.SMTPConfig{
		Host:        "smtp.example.com",
		Port:        2525,
		From:        "noreply@example.com",
		FrontendURL: "https://app.example.com/",
	}, nil)
	require.NoError(t, err)

	c := &captured{}
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return sendErr
	}
	return m, c
}

func TestSendInvitation(t *testing.T) {
	m, c := newTestMailer(t, nil)
	user := entities.NewInviteStub("Pat@Example.com", "")
	start := time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC)
	meeting := &entities.Meeting{ID: uuid.New(), Title: "Roadmap <review>", ScheduledStart: &start}

	require.NoError(t, m.SendInvitation(context.Background(), user, meeting))

	assert.Equal(t, "smtp.example.com:2525", c.addr)
	assert.Equal(t, []string{"pat@example.com"}, c.to)
	assert.Contains(t, c.msg, "Subject: You're invited: Roadmap <review>")
	assert.Contains(t, c.msg, "Hi pat,")
	assert.Contains(t, c.msg, "Roadmap &lt;review&gt;", "html part is escaped")
	assert.Contains(t, c.msg, "https://app.example.com/invite?email=pat%40example.com&amp;token="+*user.InviteToken)
	assert.Contains(t, c.msg, "Tue, 20 Oct 2026 15:00:00 UTC")
	assert.True(t, strings.HasSuffix(c.msg, "--==meeting-sync-boundary==--\r\n"))
}

func TestSendInvitation_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	m, _ := newTestMailer(t, boom)
	meeting := &entities.Meeting{ID: uuid.New()}

	err := m.SendInvitation(context.Background(), entities.NewInviteStub("a@b.c", "A"), meeting)
	assert.ErrorIs(t, err, boom)

	err = m.SendInvitation(context.Background(), &entities.User{ID: uuid.New(), Email: "x@y.z"}, meeting)
	assert.Error(t, err, "users without an invite token are not mailed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.SendInvitation(ctx, entities.NewInviteStub("a@b.c", "A"), meeting)
	assert.ErrorIs(t, err, context.Canceled)
}
