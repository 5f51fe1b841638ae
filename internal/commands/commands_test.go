package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRequiresSlashPrefix(t *testing.T) {
	assert.Nil(t, Match("help"))
	assert.Nil(t, Match(""))
}

func TestMatchByNamePrefix(t *testing.T) {
	matches := Match("/he")
	require.NotEmpty(t, matches)
	assert.Equal(t, "/help", matches[0].Name)

	matches = Match("/cl")
	require.Len(t, matches, 1)
	assert.Equal(t, "/clear", matches[0].Name)
}

func TestMatchByDescription(t *testing.T) {
	// "uptime" appears only in the /status description.
	matches := Match("/uptime")
	require.Len(t, matches, 1)
	assert.Equal(t, "/status", matches[0].Name)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	matches := Match("/HELP")
	require.NotEmpty(t, matches)
	assert.Equal(t, "/help", matches[0].Name)
}

func TestBareSlashMatchesEverything(t *testing.T) {
	assert.Len(t, Match("/"), len(Registry))
}
