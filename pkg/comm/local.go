package comm

import (
	"context"
	"sync"

	appErrors "github.com/fmm-go/fmmcore/pkg/errors"
)

// message is one queued entry in a rank's inbox.
type message struct {
	from    int
	tag     Tag
	payload []byte
}

// roundState rendezvous-synchronizes one collective round: every rank
// contributes a T, the last arrival computes one R per rank with combine,
// and every rank's enter() returns its own slot. This is the same
// barrier-then-fan-out shape the teacher's worker pool uses to join
// per-chunk results, generalized to an arbitrary per-rank payload type.
type roundState[T any, R any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	gen    int
	count  int
	values []T
	result []R
}

func newRoundState[T any, R any]() *roundState[T, R] {
	rs := &roundState[T, R]{}
	rs.cond = sync.NewCond(&rs.mu)
	return rs
}

func (rs *roundState[T, R]) enter(ctx context.Context, rank, size int, value T, combine func([]T) []R) (R, error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.values == nil {
		rs.values = make([]T, size)
	}
	myGen := rs.gen
	rs.values[rank] = value
	rs.count++
	if rs.count == size {
		rs.result = combine(rs.values)
		rs.values = nil
		rs.count = 0
		rs.gen++
		rs.cond.Broadcast()
	} else {
		for rs.gen == myGen {
			rs.cond.Wait()
		}
	}
	return rs.result[rank], nil
}

// group is the shared state behind every rank's Comm in one in-process
// run. It has no network surface: Send/Recv resolve directly against
// sibling inboxes, and the collectives are plain rendezvous barriers.
type group struct {
	size   int
	closed bool

	inboxMu   []sync.Mutex
	inboxCond []*sync.Cond
	inbox     [][]message

	allreduce *roundState[float64, float64]
	allgather *roundState[[]byte, [][]byte]
	alltoall  *roundState[[]int, []int]
	alltoallv *roundState[[][]byte, [][]byte]
	barrier   *roundState[struct{}, struct{}]
}

// NewLocalGroup builds size in-process communicators that can address one
// another directly. This is the default Comm backend and the one
// exercised by deterministic tests: there is no serialization boundary,
// no dropped connection, no retry policy to model.
func NewLocalGroup(size int) []Comm {
	if size <= 0 {
		panic("comm: NewLocalGroup: size must be positive")
	}
	g := &group{
		size:      size,
		inboxMu:   make([]sync.Mutex, size),
		inboxCond: make([]*sync.Cond, size),
		inbox:     make([][]message, size),
		allreduce: newRoundState[float64, float64](),
		allgather: newRoundState[[]byte, [][]byte](),
		alltoall:  newRoundState[[]int, []int](),
		alltoallv: newRoundState[[][]byte, [][]byte](),
		barrier:   newRoundState[struct{}, struct{}](),
	}
	for r := 0; r < size; r++ {
		g.inboxCond[r] = sync.NewCond(&g.inboxMu[r])
	}
	comms := make([]Comm, size)
	for r := 0; r < size; r++ {
		comms[r] = &localComm{group: g, rank: r}
	}
	return comms
}

type localComm struct {
	group *group
	rank  int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Allreduce(ctx context.Context, value float64, op ReduceOp) (float64, error) {
	combine := func(values []float64) []float64 {
		acc := values[0]
		for _, v := range values[1:] {
			switch op {
			case Min:
				if v < acc {
					acc = v
				}
			case Max:
				if v > acc {
					acc = v
				}
			case Sum:
				acc += v
			}
		}
		out := make([]float64, len(values))
		for i := range out {
			out[i] = acc
		}
		return out
	}
	return c.group.allreduce.enter(ctx, c.rank, c.group.size, value, combine)
}

func (c *localComm) Allgather(ctx context.Context, payload []byte) ([][]byte, error) {
	combine := func(payloads [][]byte) [][][]byte {
		all := make([][]byte, len(payloads))
		copy(all, payloads)
		out := make([][][]byte, len(payloads))
		for i := range out {
			out[i] = all
		}
		return out
	}
	return c.group.allgather.enter(ctx, c.rank, c.group.size, payload, combine)
}

func (c *localComm) Alltoall(ctx context.Context, sendCounts []int) ([]int, error) {
	combine := func(rows [][]int) [][]int {
		size := len(rows)
		out := make([][]int, size)
		for dst := 0; dst < size; dst++ {
			out[dst] = make([]int, size)
			for src := 0; src < size; src++ {
				out[dst][src] = rows[src][dst]
			}
		}
		return out
	}
	return c.group.alltoall.enter(ctx, c.rank, c.group.size, sendCounts, combine)
}

func (c *localComm) Alltoallv(ctx context.Context, sendPayloads [][]byte) ([][]byte, error) {
	combine := func(rows [][][]byte) [][][]byte {
		size := len(rows)
		out := make([][][]byte, size)
		for dst := 0; dst < size; dst++ {
			out[dst] = make([][]byte, size)
			for src := 0; src < size; src++ {
				out[dst][src] = rows[src][dst]
			}
		}
		return out
	}
	return c.group.alltoallv.enter(ctx, c.rank, c.group.size, sendPayloads, combine)
}

// AlltoallvP2P shares the same rendezvous as Alltoallv: the in-process
// backend has no separate Isend/Irecv overlap path to speed up, since
// there is no wire latency to hide. The recv argument's self-to-self
// slot is honored as a pre-populated fast path per the resolved
// mutual/self-partition design decision, mirroring the original's
// precondition that the shortcut only applies when that slot was
// already filled by a prior counts/displacement pass.
func (c *localComm) AlltoallvP2P(ctx context.Context, sendPayloads [][]byte, recv [][]byte) ([][]byte, error) {
	result, err := c.Alltoallv(ctx, sendPayloads)
	if err != nil {
		return nil, err
	}
	if recv != nil && c.rank < len(recv) && recv[c.rank] != nil {
		result[c.rank] = recv[c.rank]
	}
	return result, nil
}

func (c *localComm) Send(ctx context.Context, dst int, tag Tag, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g := c.group
	if dst < 0 || dst >= g.size {
		return appErrors.Wrap(appErrors.CodeInvariant, "comm: Send: destination rank out of range", nil)
	}
	g.inboxMu[dst].Lock()
	if g.closed {
		g.inboxMu[dst].Unlock()
		return appErrors.ErrCommError
	}
	g.inbox[dst] = append(g.inbox[dst], message{from: c.rank, tag: tag, payload: payload})
	g.inboxCond[dst].Broadcast()
	g.inboxMu[dst].Unlock()
	return nil
}

func matches(m message, src int, tag Tag) bool {
	if src != AnySource && m.from != src {
		return false
	}
	if tag != AnyTag && m.tag != tag {
		return false
	}
	return true
}

func (c *localComm) Recv(ctx context.Context, src int, tag Tag) (int, []byte, Tag, error) {
	g := c.group
	r := c.rank
	g.inboxMu[r].Lock()
	defer g.inboxMu[r].Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return 0, nil, 0, err
		}
		for i, m := range g.inbox[r] {
			if matches(m, src, tag) {
				g.inbox[r] = append(g.inbox[r][:i], g.inbox[r][i+1:]...)
				return m.from, m.payload, m.tag, nil
			}
		}
		if g.closed {
			return 0, nil, 0, appErrors.ErrCommError
		}
		g.inboxCond[r].Wait()
	}
}

func (c *localComm) Iprobe(src int, tag Tag) (bool, int, Tag) {
	g := c.group
	r := c.rank
	g.inboxMu[r].Lock()
	defer g.inboxMu[r].Unlock()
	for _, m := range g.inbox[r] {
		if matches(m, src, tag) {
			return true, m.from, m.tag
		}
	}
	return false, 0, 0
}

func (c *localComm) Barrier(ctx context.Context) error {
	_, err := c.group.barrier.enter(ctx, c.rank, c.group.size, struct{}{}, func(v []struct{}) []struct{} {
		return v
	})
	return err
}

func (c *localComm) Close() error {
	g := c.group
	for r := 0; r < g.size; r++ {
		g.inboxMu[r].Lock()
		g.closed = true
		g.inboxCond[r].Broadcast()
		g.inboxMu[r].Unlock()
	}
	return nil
}
