package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/nats-io/nats.go"

	appErrors "github.com/fmm-go/fmmcore/pkg/errors"
)

// NATS is the real multi-process transport: one NATS subject per
// (rank, tag) for the request/response service, plus a small
// contribute/result rendezvous built on plain publish/subscribe for the
// collectives. It requires a running nats-server and is therefore only
// unit-tested for its pure subject-naming helpers below, never for live
// I/O.

const rankHeader = "Fmm-Rank"

func sendSubject(groupID string, rank int, tag Tag) string {
	return fmt.Sprintf("fmm.%s.rank.%d.tag.%d", groupID, rank, uint32(tag))
}

func collectiveContributeSubject(groupID, kind string, round int) string {
	return fmt.Sprintf("fmm.%s.collective.%s.%d.contribute", groupID, kind, round)
}

func collectiveResultSubject(groupID, kind string, round, rank int) string {
	return fmt.Sprintf("fmm.%s.collective.%s.%d.result.%d", groupID, kind, round, rank)
}

// NatsComm implements Comm over a shared *nats.Conn. Rank 0 in the group
// plays the coordinator role for every collective: it is the only
// subscriber on the contribute subject and the only publisher on the
// per-rank result subjects. This mirrors the allreduce/allgather
// rendezvous shape of the in-process backend, just routed through a
// broker instead of shared memory.
type NatsComm struct {
	nc      *nats.Conn
	groupID string
	rank    int
	size    int

	mu   sync.Mutex
	seq  map[string]int
	subs map[string]*nats.Subscription
}

// NewNatsComm wraps an already-connected *nats.Conn as rank's Comm
// within groupID. groupID namespaces subjects so multiple evaluations
// can share one NATS cluster without colliding.
func NewNatsComm(nc *nats.Conn, groupID string, rank, size int) *NatsComm {
	return &NatsComm{
		nc:      nc,
		groupID: groupID,
		rank:    rank,
		size:    size,
		seq:     make(map[string]int),
		subs:    make(map[string]*nats.Subscription),
	}
}

func (c *NatsComm) Rank() int { return c.rank }
func (c *NatsComm) Size() int { return c.size }

func (c *NatsComm) nextRound(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.seq[kind]
	c.seq[kind]++
	return r
}

// collective runs one contribute/aggregate/fan-out round for kind.
// Every rank must call it the same number of times in the same order,
// matching the lockstep collective calls the traversal driver makes.
func (c *NatsComm) collective(ctx context.Context, kind string, payload []byte, aggregate func(contributions [][]byte) [][]byte) ([]byte, error) {
	round := c.nextRound(kind)
	resultSubj := collectiveResultSubject(c.groupID, kind, round, c.rank)
	resultSub, err := c.nc.SubscribeSync(resultSubj)
	if err != nil {
		return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: subscribe result subject", err)
	}
	defer resultSub.Unsubscribe()

	var coordSub *nats.Subscription
	if c.rank == 0 {
		coordSub, err = c.nc.SubscribeSync(collectiveContributeSubject(c.groupID, kind, round))
		if err != nil {
			return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: subscribe contribute subject", err)
		}
		defer coordSub.Unsubscribe()
	}

	msg := nats.NewMsg(collectiveContributeSubject(c.groupID, kind, round))
	msg.Data = payload
	msg.Header = nats.Header{rankHeader: []string{strconv.Itoa(c.rank)}}
	if err := c.nc.PublishMsg(msg); err != nil {
		return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: publish contribution", err)
	}

	if c.rank == 0 {
		contributions := make([][]byte, c.size)
		got := 0
		for got < c.size {
			m, err := coordSub.NextMsgWithContext(ctx)
			if err != nil {
				return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: await contributions", err)
			}
			rankStr := m.Header.Get(rankHeader)
			rank, err := strconv.Atoi(rankStr)
			if err != nil {
				return nil, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: contribution missing rank header", err)
			}
			if rank < 0 || rank >= c.size {
				return nil, appErrors.Wrap(appErrors.CodeInvariant, "comm: contribution rank out of range", nil)
			}
			if contributions[rank] == nil {
				got++
			}
			contributions[rank] = m.Data
		}
		results := aggregate(contributions)
		for r := 0; r < c.size; r++ {
			if err := c.nc.Publish(collectiveResultSubject(c.groupID, kind, round, r), results[r]); err != nil {
				return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: publish result", err)
			}
		}
		if err := c.nc.Flush(); err != nil {
			return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: flush results", err)
		}
	}

	result, err := resultSub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, appErrors.Wrap(appErrors.CodeCommError, "comm: await result", err)
	}
	return result.Data, nil
}

func (c *NatsComm) Allreduce(ctx context.Context, value float64, op ReduceOp) (float64, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, appErrors.Wrap(appErrors.CodeInvariant, "comm: marshal allreduce value", err)
	}
	aggregate := func(contributions [][]byte) [][]byte {
		values := make([]float64, len(contributions))
		for i, c := range contributions {
			_ = json.Unmarshal(c, &values[i])
		}
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
		out := make([][]byte, len(contributions))
		encoded, _ := json.Marshal(acc)
		for i := range out {
			out[i] = encoded
		}
		return out
	}
	result, err := c.collective(ctx, "allreduce", payload, aggregate)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(result, &v); err != nil {
		return 0, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: unmarshal allreduce result", err)
	}
	return v, nil
}

func (c *NatsComm) Allgather(ctx context.Context, payload []byte) ([][]byte, error) {
	aggregate := func(contributions [][]byte) [][]byte {
		encoded, _ := json.Marshal(contributions)
		out := make([][]byte, len(contributions))
		for i := range out {
			out[i] = encoded
		}
		return out
	}
	result, err := c.collective(ctx, "allgather", payload, aggregate)
	if err != nil {
		return nil, err
	}
	var all [][]byte
	if err := json.Unmarshal(result, &all); err != nil {
		return nil, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: unmarshal allgather result", err)
	}
	return all, nil
}

func (c *NatsComm) Alltoall(ctx context.Context, sendCounts []int) ([]int, error) {
	payload, err := json.Marshal(sendCounts)
	if err != nil {
		return nil, appErrors.Wrap(appErrors.CodeInvariant, "comm: marshal alltoall counts", err)
	}
	aggregate := func(contributions [][]byte) [][]byte {
		size := len(contributions)
		rows := make([][]int, size)
		for i, c := range contributions {
			_ = json.Unmarshal(c, &rows[i])
		}
		out := make([][]byte, size)
		for dst := 0; dst < size; dst++ {
			recv := make([]int, size)
			for src := 0; src < size; src++ {
				recv[src] = rows[src][dst]
			}
			out[dst], _ = json.Marshal(recv)
		}
		return out
	}
	result, err := c.collective(ctx, "alltoall", payload, aggregate)
	if err != nil {
		return nil, err
	}
	var recvCounts []int
	if err := json.Unmarshal(result, &recvCounts); err != nil {
		return nil, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: unmarshal alltoall result", err)
	}
	return recvCounts, nil
}

func (c *NatsComm) Alltoallv(ctx context.Context, sendPayloads [][]byte) ([][]byte, error) {
	payload, err := json.Marshal(sendPayloads)
	if err != nil {
		return nil, appErrors.Wrap(appErrors.CodeInvariant, "comm: marshal alltoallv payloads", err)
	}
	aggregate := func(contributions [][]byte) [][]byte {
		size := len(contributions)
		rows := make([][][]byte, size)
		for i, c := range contributions {
			_ = json.Unmarshal(c, &rows[i])
		}
		out := make([][]byte, size)
		for dst := 0; dst < size; dst++ {
			recv := make([][]byte, size)
			for src := 0; src < size; src++ {
				recv[src] = rows[src][dst]
			}
			out[dst], _ = json.Marshal(recv)
		}
		return out
	}
	result, err := c.collective(ctx, "alltoallv", payload, aggregate)
	if err != nil {
		return nil, err
	}
	var recv [][]byte
	if err := json.Unmarshal(result, &recv); err != nil {
		return nil, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: unmarshal alltoallv result", err)
	}
	return recv, nil
}

// AlltoallvP2P falls back to the same contribute/aggregate round as
// Alltoallv: NATS has no Isend/Irecv overlap primitive to exploit, so
// the "P2P" variant only differs by honoring a pre-populated
// self-to-self recv slot, same as the in-process backend.
func (c *NatsComm) AlltoallvP2P(ctx context.Context, sendPayloads [][]byte, recv [][]byte) ([][]byte, error) {
	result, err := c.Alltoallv(ctx, sendPayloads)
	if err != nil {
		return nil, err
	}
	if recv != nil && c.rank < len(recv) && recv[c.rank] != nil {
		result[c.rank] = recv[c.rank]
	}
	return result, nil
}

func (c *NatsComm) Send(ctx context.Context, dst int, tag Tag, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(sendSubject(c.groupID, dst, tag))
	msg.Data = payload
	msg.Header = nats.Header{rankHeader: []string{strconv.Itoa(c.rank)}}
	if err := c.nc.PublishMsg(msg); err != nil {
		return appErrors.Wrap(appErrors.CodeCommError, "comm: send", err)
	}
	return nil
}

// Recv subscribes synchronously to this rank's own subject for tag and
// blocks for the first message. src filtering happens client-side since
// NATS subjects are per-destination, not per-(destination,source).
func (c *NatsComm) Recv(ctx context.Context, src int, tag Tag) (int, []byte, Tag, error) {
	subj := sendSubject(c.groupID, c.rank, tag)
	sub, err := c.nc.SubscribeSync(subj)
	if err != nil {
		return 0, nil, 0, appErrors.Wrap(appErrors.CodeCommError, "comm: subscribe recv subject", err)
	}
	defer sub.Unsubscribe()
	for {
		m, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			return 0, nil, 0, appErrors.Wrap(appErrors.CodeCommError, "comm: recv", err)
		}
		from, err := strconv.Atoi(m.Header.Get(rankHeader))
		if err != nil {
			return 0, nil, 0, appErrors.Wrap(appErrors.CodeProtocolMismatch, "comm: message missing rank header", err)
		}
		if src != AnySource && from != src {
			continue
		}
		return from, m.Data, tag, nil
	}
}

// Iprobe has no race-free NATS equivalent to peeking a queue without
// consuming it; it conservatively reports not-ready. Callers that need
// true non-blocking polling should use the local backend, or drive
// Recv from its own goroutine with a short-lived context.
func (c *NatsComm) Iprobe(src int, tag Tag) (bool, int, Tag) {
	return false, 0, 0
}

func (c *NatsComm) Barrier(ctx context.Context) error {
	_, err := c.collective(ctx, "barrier", []byte{}, func(contributions [][]byte) [][]byte {
		return contributions
	})
	return err
}

func (c *NatsComm) Close() error {
	c.nc.Close()
	return nil
}
