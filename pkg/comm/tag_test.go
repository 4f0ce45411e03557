package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagRoundTrip(t *testing.T) {
	tag := MakeTag(ChildCellTag, 3, 5, SendDirection)
	assert.Equal(t, ChildCellTag, tag.MessageType())
	assert.Equal(t, 3, tag.GrainSize())
	assert.Equal(t, 5, tag.Level())
	assert.Equal(t, SendDirection, tag.Direction())
	assert.False(t, tag.IsReply())
}

func TestToggleDirection(t *testing.T) {
	tag := MakeTag(BodyTag, 1, 2, SendDirection)
	reply := ToggleDirection(tag)
	assert.Equal(t, ReceiveDirection, reply.Direction())
	assert.True(t, reply.IsReply())
	// messageType/grainSize/level survive the toggle
	assert.Equal(t, BodyTag, reply.MessageType())
	assert.Equal(t, 1, reply.GrainSize())
	assert.Equal(t, 2, reply.Level())

	back := ToggleDirection(reply)
	assert.Equal(t, tag, back)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "NULLTAG", NullTag.String())
	assert.Equal(t, "CELLTAG", CellTag.String())
	assert.Equal(t, "CHILDCELLTAG", ChildCellTag.String())
	assert.Equal(t, "BODYTAG", BodyTag.String())
	assert.Equal(t, "LEVELTAG", LevelTag.String())
	assert.Equal(t, "FLUSHTAG", FlushTag.String())
	assert.Equal(t, "UNKNOWNTAG", MessageType(99).String())
}

func TestTagFieldTruncation(t *testing.T) {
	// grainSize/level wider than 8 bits get masked, not silently dropped into
	// adjacent fields.
	tag := MakeTag(CellTag, 300, 300, ReceiveDirection)
	assert.Equal(t, 300&0xFF, tag.GrainSize())
	assert.Equal(t, 300&0xFF, tag.Level())
}
