package comm

import "context"

// ReduceOp selects the reduction applied by Allreduce.
type ReduceOp int

const (
	Min ReduceOp = iota
	Max
	Sum
)

// AnyTag matches any tag in Recv/Iprobe, mirroring MPI_ANY_TAG. AnySource
// (-1) plays the equivalent role for the source-rank argument.
const AnyTag Tag = 0xFFFFFFFF

// AnySource matches any sender in Recv/Iprobe, mirroring MPI_ANY_SOURCE.
const AnySource = -1

// Comm is the rank-to-rank communicator the engine drives for both bulk
// collectives (domain-bounds exchange, LET alltoall/alltoallv) and the
// on-demand tagged request/response service. One Comm instance is bound
// to exactly one rank of a fixed-size group.
//
// Every method blocks the calling goroutine until its communication step
// has completed; callers that want overlap run it from its own goroutine,
// same as the teacher's worker-pool tasks do.
type Comm interface {
	// Rank returns this communicator's own rank.
	Rank() int
	// Size returns the group size.
	Size() int

	// Allreduce combines one float64 per rank with op and returns the
	// combined value to every rank. Used for global bounds (Min/Max) and
	// scalar tallies (Sum).
	Allreduce(ctx context.Context, value float64, op ReduceOp) (float64, error)

	// Allgather gathers one []byte payload per rank and returns the
	// payloads ordered by rank. Used by partition.Partition to gather
	// every rank's bodies.
	Allgather(ctx context.Context, payload []byte) ([][]byte, error)

	// Alltoall exchanges one int count per rank pair: sendCounts[j] is
	// what this rank will send to rank j; the return value is what this
	// rank will receive from each rank.
	Alltoall(ctx context.Context, sendCounts []int) ([]int, error)

	// Alltoallv exchanges variable-length payloads, one per destination
	// rank (sendPayloads[j] goes to rank j). Returns the payload received
	// from each rank, ordered by source rank.
	Alltoallv(ctx context.Context, sendPayloads [][]byte) ([][]byte, error)

	// AlltoallvP2P is the point-to-point Isend/Irecv-overlap alternative
	// to Alltoallv: same contract, different internal scheduling. The
	// self-to-self entry is only short-circuited when recv has already
	// been pre-populated by a prior counts/displacement pass.
	AlltoallvP2P(ctx context.Context, sendPayloads [][]byte, recv [][]byte) ([][]byte, error)

	// Send delivers payload to dst tagged with tag. Send to Rank() is
	// legal and loops back without going over the transport.
	Send(ctx context.Context, dst int, tag Tag, payload []byte) error

	// Recv blocks for the next message matching tag from src, or from
	// any source when src is -1. Returns the sender's rank, the payload,
	// and the tag actually matched (direction bit included).
	Recv(ctx context.Context, src int, tag Tag) (srcRank int, payload []byte, matched Tag, err error)

	// Iprobe reports whether a message matching tag is available from
	// src (or from any source when src is -1) without consuming it.
	Iprobe(src int, tag Tag) (ready bool, fromRank int, matched Tag)

	// Barrier blocks until every rank in the group has called Barrier.
	Barrier(ctx context.Context) error

	// Close releases the underlying transport. Pending Recv calls
	// return errors.ErrCommError once Close has run.
	Close() error
}
