package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/embernet/tapestry-sub001/internal/config"
)

func TestNewOpenAI(t *testing.T) {
	gen, err := New(t.Context(), config.AIConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		BaseURL:  "http://localhost:1234/v1",
		Breaker:  config.BreakerConfig{Enabled: true, Failures: 3, Timeout: time.Second},
	}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(t.Context(), config.AIConfig{Provider: "carrier-pigeon", APIKey: "x"}, nil, nil)
	assert.ErrorContains(t, err, "unknown ai provider")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(t.Context(), config.AIConfig{Provider: "openai"}, nil, nil)
	assert.Error(t, err)
}
