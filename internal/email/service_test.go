package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestSendCustom(t *testing.T) {
	capture := &captureSender{}
	svc := &smtpService{from: "alerts@example.com", dialer: capture}

	require.NoError(t, svc.SendCustom(context.Background(), "oncall@example.com", "EMERGENCY", "body text"))
	require.Len(t, capture.sent, 1)

	m := capture.sent[0]
	assert.Equal(t, []string{"alerts@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"oncall@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"EMERGENCY"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "body text")
}

func TestSendCustomErrors(t *testing.T) {
	svc := &smtpService{from: "a@example.com", dialer: &captureSender{err: errors.New("dial tcp: refused")}}
	err := svc.SendCustom(context.Background(), "b@example.com", "s", "c")
	assert.ErrorContains(t, err, "refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SendCustom(ctx, "b@example.com", "s", "c"), context.Canceled)
}
