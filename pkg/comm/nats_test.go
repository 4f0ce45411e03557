package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendSubject(t *testing.T) {
	tag := MakeTag(BodyTag, 2, 1, SendDirection)
	assert.Equal(t, "fmm.run1.rank.3.tag.4131", sendSubject("run1", 3, tag))
}

func TestCollectiveSubjects(t *testing.T) {
	assert.Equal(t, "fmm.run1.collective.allreduce.0.contribute", collectiveContributeSubject("run1", "allreduce", 0))
	assert.Equal(t, "fmm.run1.collective.allreduce.0.result.2", collectiveResultSubject("run1", "allreduce", 0, 2))
}

func TestNextRoundIncrements(t *testing.T) {
	c := &NatsComm{seq: make(map[string]int)}
	assert.Equal(t, 0, c.nextRound("allreduce"))
	assert.Equal(t, 1, c.nextRound("allreduce"))
	assert.Equal(t, 0, c.nextRound("allgather"))
}
