package service

import (
	"context"
	"testing"
	"time"

	"visitor-counter/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotFilter_Classify_Signatures(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	f := NewBotFilter(client, log, 100, 10*time.Second)

	tests := []struct {
		name           string
		userAgent      string
		expectBot      bool
		expectedReason string
	}{
		{
			name:           "Empty user agent",
			userAgent:      "",
			expectBot:      true,
			expectedReason: BotReasonEmptyUA,
		},
		{
			name:           "Googlebot",
			userAgent:      "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			expectBot:      true,
			expectedReason: BotReasonSignature,
		},
		{
			name:           "curl",
			userAgent:      "curl/8.4.0",
			expectBot:      true,
			expectedReason: BotReasonSignature,
		},
		{
			name:           "python-requests",
			userAgent:      "python-requests/2.31.0",
			expectBot:      true,
			expectedReason: BotReasonSignature,
		},
		{
			name:           "Mixed-case crawler",
			userAgent:      "MySearch Crawler 1.0",
			expectBot:      true,
			expectedReason: BotReasonSignature,
		},
		{
			name:      "Regular Chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			expectBot: false,
		},
		{
			name:      "Regular mobile Safari",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			expectBot: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &domain.VisitEvent{
				UserAgent: tt.userAgent,
				Timestamp: time.Now(),
			}
			isBot, reason := f.Classify(ctx, event, "identity-"+tt.name)

			assert.Equal(t, tt.expectBot, isBot)
			if tt.expectBot {
				assert.Equal(t, tt.expectedReason, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestBotFilter_Classify_Denylisted(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	f := NewBotFilter(client, log, 100, 10*time.Second)

	_, err := client.SAdd(ctx, client.KeyBuilder.KeyDenylist(), "blocked-identity")
	require.NoError(t, err)

	event := &domain.VisitEvent{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
		Timestamp: time.Now(),
	}

	isBot, reason := f.Classify(ctx, event, "blocked-identity")
	assert.True(t, isBot)
	assert.Equal(t, BotReasonDenylisted, reason)

	isBot, _ = f.Classify(ctx, event, "clean-identity")
	assert.False(t, isBot)
}

func TestBotFilter_Classify_Burst(t *testing.T) {
	_, client, log := setupTestStore(t)
	ctx := context.Background()

	f := NewBotFilter(client, log, 3, 10*time.Second)

	event := &domain.VisitEvent{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
		Timestamp: time.Now(),
	}

	// Requests within the burst threshold pass
	for i := 0; i < 3; i++ {
		isBot, _ := f.Classify(ctx, event, "rapid-identity")
		assert.False(t, isBot)
	}

	// The next one inside the same short window trips the burst rule
	isBot, reason := f.Classify(ctx, event, "rapid-identity")
	assert.True(t, isBot)
	assert.Equal(t, BotReasonBurst, reason)
}

func TestBotFilter_Classify_FailsOpenOnStoreOutage(t *testing.T) {
	mr, client, log := setupTestStore(t)
	ctx := context.Background()

	f := NewBotFilter(client, log, 3, 10*time.Second)

	// Bring the store down: denylist and burst checks must pass the event
	mr.Close()

	event := &domain.VisitEvent{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
		Timestamp: time.Now(),
	}

	isBot, _ := f.Classify(ctx, event, "identity-a")
	assert.False(t, isBot)

	// Signature rules need no store and still apply
	event.UserAgent = "curl/8.4.0"
	isBot, reason := f.Classify(ctx, event, "identity-a")
	assert.True(t, isBot)
	assert.Equal(t, BotReasonSignature, reason)
}
