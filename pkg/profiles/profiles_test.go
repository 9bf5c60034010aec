package profiles

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/burattino/pkg/gate"
)

func TestAddProfileRequiresEndpoint(t *testing.T) {
	r := NewRegistry(gate.New())

	err := r.AddProfile(Profile{Name: "default", Model: "gpt-4o", Endpoint: "missing"})
	assert.True(t, errors.Is(err, ErrEndpointNotFound))
}

func TestLookupByNameAndCapability(t *testing.T) {
	r := NewRegistry(gate.New())
	r.AddEndpoint(Endpoint{Name: "main", BaseURL: "https://api.example.com/v1/chat/completions", Parallelism: 2})

	require.NoError(t, r.AddProfile(Profile{
		Name:       "planner",
		Model:      "gpt-4o",
		Capability: CapabilityToolUse,
		Endpoint:   "main",
		APIKey:     "sk-test",
	}))

	byName, err := r.ByName("planner")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", byName.Model)

	byCap, err := r.ByCapability(CapabilityToolUse)
	require.NoError(t, err)
	assert.Equal(t, byName, byCap)

	_, err = r.ByName("nope")
	assert.True(t, errors.Is(err, ErrProfileNotFound))
	_, err = r.ByCapability(CapabilityLongContext)
	assert.True(t, errors.Is(err, ErrProfileNotFound))

	ep, err := r.EndpointOf(byName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ep.Parallelism)
}

func TestLoadYAMLWiresGate(t *testing.T) {
	r := NewRegistry(gate.New())
	config := `
endpoints:
  - name: main
    base_url: https://api.example.com/v1/chat/completions
    parallelism: 1
profiles:
  - name: default
    model: gpt-4o-mini
    capability: chat
    endpoint: main
    api_key: sk-test
`
	require.NoError(t, r.LoadYAML([]byte(config)))

	p, err := r.ByCapability(CapabilityChat)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", p.Model)

	ep, err := r.EndpointOf(p)
	require.NoError(t, err)
	permit, err := r.Gate().Acquire(context.Background(), ep.BaseURL)
	require.NoError(t, err)
	permit.Release()
}
