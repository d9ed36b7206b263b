package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{SendTo: "user@example.com", Subject: "Hi", BodyHTML: "<p>hi</p>"}
	require.NoError(t, valid.Validate())

	cases := map[string]email.SendEmailParams{
		"missing recipient": {Subject: "Hi", BodyHTML: "<p>hi</p>"},
		"bad recipient":     {SendTo: "not-an-email", Subject: "Hi", BodyHTML: "<p>hi</p>"},
		"missing subject":   {SendTo: "user@example.com", BodyHTML: "<p>hi</p>"},
		"missing body":      {SendTo: "user@example.com", Subject: "Hi"},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, params.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Your subscription renewed",
		BodyHTML: "<p>renewed</p>",
		Tag:      "subscription renewed",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	assert.True(t, strings.HasSuffix(htmlFile, "_subscription_renewed.html"))

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>renewed</p>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "user@example.com", meta["send_to"])
	assert.Equal(t, "subscription renewed", meta["tag"])
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	t.Run("dev sender without tokens", func(t *testing.T) {
		t.Parallel()
		sender, err := email.NewSender(email.Config{SenderEmail: "billing@example.com", SupportEmail: "support@example.com", DevDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, sender)
	})

	t.Run("postmark with tokens", func(t *testing.T) {
		t.Parallel()
		sender, err := email.NewSender(email.Config{
			PostmarkServerToken:  "server",
			PostmarkAccountToken: "account",
			SenderEmail:          "billing@example.com",
			SupportEmail:         "support@example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, sender)
	})

	t.Run("postmark rejects bad sender", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkClient(email.Config{
			PostmarkServerToken:  "server",
			PostmarkAccountToken: "account",
			SenderEmail:          "nope",
			SupportEmail:         "support@example.com",
		})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}
