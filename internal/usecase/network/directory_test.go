package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmesh/internal/domain"
)

// scriptedClient is a controllable AgentClient for directory and processor tests.
type scriptedClient struct {
	reply     string
	sendErr   error
	rawReply  *domain.Message
	reachable bool
	card      *domain.AgentCard
	cardErr   error
	sends     int
}

func (c *scriptedClient) Send(_ context.Context, msg domain.Message) (domain.Message, error) {
	c.sends++
	if c.sendErr != nil {
		return domain.Message{}, c.sendErr
	}
	if c.rawReply != nil {
		return *c.rawReply, nil
	}
	return domain.NewAgentReply(msg, domain.TextContent(c.reply)), nil
}

func (c *scriptedClient) TestReachable(_ context.Context) bool { return c.reachable }

func (c *scriptedClient) Card(_ context.Context) (*domain.AgentCard, error) {
	if c.cardErr != nil {
		return nil, c.cardErr
	}
	return c.card, nil
}

func TestDirectoryAddAndResolve(t *testing.T) {
	dir := NewDirectory(nil, nil)
	client := &scriptedClient{reachable: true}

	require.NoError(t, dir.Add("weather", "http://127.0.0.1:9001", client))
	assert.Equal(t, 1, dir.Len())

	resolved, err := dir.Resolve("weather")
	require.NoError(t, err)
	assert.Same(t, client, resolved.(*scriptedClient))

	endpoint, err := dir.Endpoint("weather")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9001", endpoint)
}

func TestDirectoryDuplicateAdd(t *testing.T) {
	dir := NewDirectory(nil, nil)
	require.NoError(t, dir.Add("weather", "", &scriptedClient{}))

	err := dir.Add("weather", "", &scriptedClient{})
	assert.ErrorIs(t, err, domain.ErrAgentDuplicate)
	assert.Equal(t, 1, dir.Len())
}

func TestDirectoryRemove(t *testing.T) {
	dir := NewDirectory(nil, nil)
	require.NoError(t, dir.Add("weather", "", &scriptedClient{}))

	require.NoError(t, dir.Remove("weather"))
	assert.Equal(t, 0, dir.Len())

	_, err := dir.Resolve("weather")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	assert.ErrorIs(t, dir.Remove("weather"), domain.ErrAgentNotFound)
}

func TestDirectoryNamesKeepRegistrationOrder(t *testing.T) {
	dir := NewDirectory(nil, nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, dir.Add(name, "", &scriptedClient{}))
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, dir.Names())

	require.NoError(t, dir.Remove("alpha"))
	assert.Equal(t, []string{"zeta", "mid"}, dir.Names())
}

func TestDirectoryOnChange(t *testing.T) {
	dir := NewDirectory(nil, nil)

	changes := 0
	dir.OnChange(func() { changes++ })

	require.NoError(t, dir.Add("weather", "", &scriptedClient{}))
	assert.Equal(t, 1, changes)

	require.NoError(t, dir.Remove("weather"))
	assert.Equal(t, 2, changes)
}

func TestDirectoryCapabilities(t *testing.T) {
	dir := NewDirectory(nil, nil)
	card := &domain.AgentCard{Name: "Weather Agent", Description: "weather"}
	require.NoError(t, dir.Add("weather", "", &scriptedClient{card: card}))
	require.NoError(t, dir.Add("broken", "", &scriptedClient{cardErr: errors.New("unreachable")}))

	caps := dir.Capabilities(context.Background())
	require.Len(t, caps, 2)
	assert.Equal(t, "weather", caps[0].Name)
	assert.Equal(t, card, caps[0].Card)
	// A failed fetch contributes a nil card, not an error.
	assert.Equal(t, "broken", caps[1].Name)
	assert.Nil(t, caps[1].Card)
}

func TestDirectoryStatuses(t *testing.T) {
	dir := NewDirectory(nil, nil)
	require.NoError(t, dir.Add("up", "http://a", &scriptedClient{reachable: true}))
	require.NoError(t, dir.Add("down", "http://b", &scriptedClient{reachable: false}))

	statuses := dir.Statuses(context.Background())
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Reachable)
	assert.False(t, statuses[1].Reachable)
	assert.Equal(t, "http://b", statuses[1].Endpoint)
}
