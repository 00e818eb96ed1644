package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatSession_CloneIsDeep(t *testing.T) {
	original := sampleSessions()[0]
	clone := original.Clone()

	clone.Messages[0].Text = "changed"
	clone.Messages[1].GroundingChunks[0].Web.Title = "changed"
	clone.Messages = append(clone.Messages, ChatMessage{ID: "extra"})

	assert.Equal(t, "Explain quantum tunneling", original.Messages[0].Text)
	assert.Equal(t, "A", original.Messages[1].GroundingChunks[0].Web.Title)
	assert.Len(t, original.Messages, 3)
}

func TestChatSession_IsFresh(t *testing.T) {
	sessions := sampleSessions()
	assert.False(t, sessions[0].IsFresh())
	assert.True(t, sessions[1].IsFresh())
	assert.False(t, ChatSession{}.IsFresh())
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 40))
	assert.Equal(t, "Explain quantum tunneling in simple term", TruncateRunes("Explain quantum tunneling in simple terms please", 40))
	assert.Equal(t, "héllo", TruncateRunes("héllo wörld", 5))
}

func TestParseAspectRatio(t *testing.T) {
	for _, s := range []string{"1:1", "16:9", "9:16", "4:3", "3:4"} {
		r, err := ParseAspectRatio(s)
		assert.NoError(t, err)
		assert.Equal(t, AspectRatio(s), r)
	}

	r, err := ParseAspectRatio("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultAspectRatio, r)

	_, err = ParseAspectRatio("2:1")
	assert.Error(t, err)
}
