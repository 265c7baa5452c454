package email_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/email"
)

func TestSendEmailParamsValidate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{
		To:       "customer@example.com",
		Subject:  "Payment failed",
		BodyHTML: "<p>Please update your card.</p>",
	}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*email.SendEmailParams){
		"missing recipient":   func(p *email.SendEmailParams) { p.To = "" },
		"malformed recipient": func(p *email.SendEmailParams) { p.To = "not-an-address" },
		"missing subject":     func(p *email.SendEmailParams) { p.Subject = "" },
		"missing body":        func(p *email.SendEmailParams) { p.BodyHTML = "" },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := valid
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestValidAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, email.ValidAddress("user@example.com"))
	assert.True(t, email.ValidAddress("user.name+tag@sub.example.co"))
	assert.False(t, email.ValidAddress("user@"))
	assert.False(t, email.ValidAddress("@example.com"))
	assert.False(t, email.ValidAddress("user@example"))
	assert.False(t, email.ValidAddress("user example@example.com"))
}

func TestNewPostmarkSenderConfig(t *testing.T) {
	t.Parallel()

	_, err := email.NewPostmarkSender(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	})
	require.NoError(t, err)

	_, err = email.NewPostmarkSender(email.Config{
		PostmarkAccountToken: "account",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)

	_, err = email.NewPostmarkSender(email.Config{
		PostmarkServerToken:  "server",
		PostmarkAccountToken: "account",
		SenderEmail:          "not-an-address",
		SupportEmail:         "support@example.com",
	})
	assert.ErrorIs(t, err, email.ErrInvalidConfig)
}

func TestDevSenderWritesToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	require.NoError(t, sender.SendEmail(context.Background(), email.SendEmailParams{
		To:       "customer@example.com",
		Subject:  "Your plan changed",
		BodyHTML: "<p>Welcome to Pro.</p>",
		Tag:      "plan-changed",
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var foundHTML bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".html") {
			foundHTML = true
			body, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(body), "Welcome to Pro")
		}
	}
	assert.True(t, foundHTML)
}
