package services

import (
	"context"
	"testing"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestResendMailerTestMode(t *testing.T) {
	ctx := context.Background()

	t.Run("no api key forces test mode", func(t *testing.T) {
		m := NewResendMailer(&config.Config{EmailFrom: "noreply@acme.test", EmailFromName: "Acme", EmailTestMode: false})
		assert.True(t, m.testMode)
		assert.Nil(t, m.client)
		assert.Equal(t, "Acme <noreply@acme.test>", m.from)

		err := m.Send(ctx, &Email{To: []string{"a@x.test"}, Subject: "Hi", TextBody: "Hello"})
		assert.NoError(t, err)
	})

	t.Run("explicit test mode keeps the client unused", func(t *testing.T) {
		m := NewResendMailer(&config.Config{ResendAPIKey: "re_test", EmailTestMode: true})
		assert.True(t, m.testMode)
		assert.NoError(t, m.Send(ctx, &Email{To: []string{"a@x.test"}, HTMLBody: "<p>Hello</p>"}))
	})

	t.Run("validation", func(t *testing.T) {
		m := NewResendMailer(&config.Config{})
		assert.True(t, errors.Is(m.Send(ctx, &Email{TextBody: "x"}), errors.NotValid))
		assert.True(t, errors.Is(m.Send(ctx, &Email{To: []string{"a@x.test"}}), errors.NotValid))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}
