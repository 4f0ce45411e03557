// Package fmm assembles partitioning, tree construction, the local
// essential tree pipeline, and the traversal passes behind the single
// Driver surface a caller (cmd/fmm-cli or a test) actually calls.
// Nothing here is itself novel: every method forwards to the package
// that implements it, in the order spec §6's Driver API lists them.
package fmm

import (
	"context"

	"github.com/fmm-go/fmmcore/internal/kernel"
	"github.com/fmm-go/fmmcore/internal/let"
	"github.com/fmm-go/fmmcore/internal/octree"
	"github.com/fmm-go/fmmcore/internal/partition"
	"github.com/fmm-go/fmmcore/internal/request"
	"github.com/fmm-go/fmmcore/internal/traversal"
	"github.com/fmm-go/fmmcore/pkg/comm"
	fmmerrors "github.com/fmm-go/fmmcore/pkg/errors"
	"github.com/fmm-go/fmmcore/pkg/model"
	"github.com/fmm-go/fmmcore/pkg/parallel"
	"github.com/fmm-go/fmmcore/pkg/utils"
)

// Config is the per-Driver evaluation configuration, the engine-facing
// subset of pkg/config.Config.EvaluationConfig.
type Config struct {
	KernelName string
	Order      int
	NumLevels  int
	WaveNumber float64
	Images     int
	Cycle      [3]float64
}

// Driver bundles the state the original kept as process-wide globals
// (args, LET, traversal, bounds, caches) into one struct passed to every
// call, per spec §9's "global mutable state avoided" design note.
type Driver struct {
	c    comm.Comm
	k    kernel.Kernel
	cfg  Config
	pool parallel.PoolConfig
	log  utils.Logger
	tmr  *utils.Timer

	svc *request.Service

	globalBounds model.Bounds
	rankBounds   []model.Bounds
	li           model.LevelIndex

	cells  []model.Cell
	bodies []model.Body

	letCells  [][]model.Cell
	letBodies [][]model.Body
	segments  []let.Segment
}

// New builds a Driver over c, constructing the physics kernel named by
// cfg.KernelName and the on-demand request service bound to c. Pass nil
// for logger to use a no-op logger.
func New(c comm.Comm, cfg Config, logger utils.Logger) (*Driver, error) {
	k, err := kernel.New(cfg.KernelName, cfg.Order, cfg.WaveNumber)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Driver{
		c:    c,
		k:    k,
		cfg:  cfg,
		pool: parallel.DefaultPoolConfig(),
		log:  logger,
		tmr:  utils.NewTimer("fmm", utils.WithLogger(logger)),
		svc:  request.NewService(c, cfg.Order, logger),
	}, nil
}

// Partition assigns every body to an owning rank and records the
// per-rank subdomain bounds, returning this rank's own subdomain.
func (d *Driver) Partition(ctx context.Context, bodies []model.Body, globalBounds model.Bounds) (model.Bounds, error) {
	d.globalBounds = globalBounds
	localBounds, err := partition.Partition(ctx, d.c, bodies, globalBounds)
	if err != nil {
		return model.Bounds{}, err
	}
	scratch := make([]model.Body, len(bodies))
	copy(scratch, bodies)
	d.rankBounds = partition.AssignRanks(scratch, globalBounds, d.c.Size())
	return localBounds, nil
}

// CommBodies moves bodies to the rank recorded in Body.IRank (set by
// Partition) and keeps the result as this Driver's local body set.
func (d *Driver) CommBodies(ctx context.Context, bodies []model.Body) ([]model.Body, error) {
	owned, err := partition.CommBodies(ctx, d.c, bodies)
	if err != nil {
		return nil, err
	}
	d.bodies = owned
	return owned, nil
}

// BuildTree builds this rank's local octree over bodies within
// localBounds and keeps the result as this Driver's local tree.
func (d *Driver) BuildTree(bodies []model.Body, localBounds model.Bounds) ([]model.Cell, error) {
	cells, sorted, li, err := octree.BuildTree(bodies, localBounds, d.cfg.NumLevels)
	if err != nil {
		return nil, err
	}
	for i := range cells {
		cells[i].M = make([]complex128, d.cfg.Order)
		cells[i].L = make([]complex128, d.cfg.Order)
	}
	d.cells = cells
	d.bodies = sorted
	d.li = li
	return cells, nil
}

// UpwardPass runs P2M then M2M over cells in place.
func (d *Driver) UpwardPass(ctx context.Context, cells []model.Cell) {
	p2m := d.tmr.Start("upward_pass")
	traversal.UpwardPass(ctx, cells, d.bodies, d.li, d.k, d.tmr, d.pool)
	p2m.Stop()
}

// SetLET builds this rank's per-peer LET send segments (the cells and
// bodies a remote rank needs to evaluate against this rank's subdomain)
// and registers this rank's whole local tree (cells and bodies) with the
// on-demand request service so peers that don't receive everything in
// the bulk exchange can still fetch the rest on demand.
func (d *Driver) SetLET(cells []model.Cell, cycle [3]float64) {
	d.cfg.Cycle = cycle
	domainExtent := d.globalBounds.HalfWidth() * 2
	d.letCells, d.letBodies = let.BuildAll(cells, d.bodies, d.rankBounds, d.c.Rank(), cycle, domainExtent)
	d.svc.SetSendLET(cells, d.bodies)
}

// CommCells exchanges every rank's LET cell/body segments via one
// Alltoallv round each, keeping the result as this Driver's received
// segments (indexed by source rank).
func (d *Driver) CommCells(ctx context.Context) ([]let.Segment, error) {
	segments, err := let.CommLET(ctx, d.c, d.letCells, d.letBodies, d.cfg.Order)
	if err != nil {
		return nil, err
	}
	d.segments = segments
	return segments, nil
}

// GetLET returns the cells and bodies this rank received from rank,
// the subset of the global tree DualTreeTraversal evaluates cellsI
// against for that peer.
func (d *Driver) GetLET(rank int) ([]model.Cell, []model.Body) {
	seg := d.segments[rank]
	return seg.Cells, seg.Bodies
}

// AttachGlobalTree grafts every peer's received LET segment onto the
// coarse tree built over remote roots, recomputing ancestor multipoles
// bottom-up, per spec §4.6. Unlike CommCells/GetLET (per-peer segments
// DualTreeTraversal consults one at a time), this builds the single
// merged tree a global evaluation traverses as one cellsJ.
func (d *Driver) AttachGlobalTree() []model.Cell {
	globalBodies := let.RootBodies(d.segments, d.c.Rank())
	if len(globalBodies) == 0 {
		return d.cells
	}
	globalBounds := model.EmptyBounds()
	for _, b := range globalBodies {
		globalBounds.Extend(b.X)
	}
	globalCells, sortedGlobalBodies, _, err := octree.BuildTree(globalBodies, globalBounds, 1)
	if err != nil {
		return d.cells
	}
	for i := range globalCells {
		globalCells[i].M = make([]complex128, d.cfg.Order)
		globalCells[i].L = make([]complex128, d.cfg.Order)
	}
	return let.AttachRoot(globalCells, sortedGlobalBodies, d.segments, d.k)
}

// DualTreeTraversal runs M2L/L2L/L2P/P2P for this rank's cellsI against
// cellsJ (typically a peer's LET segment or the attached global tree).
// mutual is accepted and always ignored, per spec §9's Open Question
// resolution (see DESIGN.md).
func (d *Driver) DualTreeTraversal(ctx context.Context, cellsI, cellsJ []model.Cell, bodiesI, bodiesJ []model.Body, mutual bool) {
	dtt := d.tmr.Start("dual_tree_traversal")
	traversal.DualTreeTraversal(ctx, cellsI, cellsJ, bodiesI, bodiesJ, d.li, d.k, d.cfg.Cycle, mutual, d.tmr, d.pool)
	dtt.Stop()
}

// DownwardPass runs DualTreeTraversal with cellsJ empty, for callers
// that already completed M2L separately (e.g. against every peer's
// segment in turn) and now only need the local L2L/L2P sweep. With no
// cellsJ, M2L finds no candidates and P2P sums each leaf's bodies
// against that same leaf only; neighboring leaves are not summed.
func (d *Driver) DownwardPass(ctx context.Context, cells []model.Cell) {
	dp := d.tmr.Start("downward_pass")
	traversal.DualTreeTraversal(ctx, cells, nil, d.bodies, nil, d.li, d.k, d.cfg.Cycle, false, d.tmr, d.pool)
	dp.Stop()
}

// GetCell fetches a cell (or its children, or a peer's root) from rank
// via the on-demand request service, for data this rank's bulk LET
// exchange did not already cover.
func (d *Driver) GetCell(ctx context.Context, rank int, key int32, nchild int32, level int, requestType comm.MessageType) ([]model.Cell, error) {
	return d.svc.GetCell(ctx, rank, key, nchild, level, requestType)
}

// GetBodies fetches nbody consecutive bodies starting at ibody from
// rank via the on-demand request service.
func (d *Driver) GetBodies(ctx context.Context, rank int, ibody int32, nbody int32, level int) ([]model.Body, error) {
	return d.svc.GetBodies(ctx, rank, ibody, nbody, level)
}

// RecvAll drains this rank's incoming on-demand requests until every
// other rank has signaled FLUSHTAG. Call once local work for the
// current pass is done, so the rank stays available to peers still
// catching up.
func (d *Driver) RecvAll(ctx context.Context) error {
	return d.svc.RecvAll(ctx)
}

// SendFlushRequest signals every other rank that this rank has no more
// on-demand requests to issue this pass.
func (d *Driver) SendFlushRequest(ctx context.Context) error {
	return d.svc.SendFlushRequest(ctx)
}

// Cells returns this rank's local cell array, built by BuildTree and
// mutated in place by UpwardPass/DualTreeTraversal/DownwardPass.
func (d *Driver) Cells() []model.Cell { return d.cells }

// Bodies returns this rank's local body array, reordered by BuildTree
// into the Morton order its cells' IBODY ranges reference.
func (d *Driver) Bodies() []model.Body { return d.bodies }

// Evaluate runs the full single-pass pipeline for bodies already known
// to be local to this rank (mpisize=1, or a pre-partitioned test
// fixture): BuildTree, UpwardPass, and a DualTreeTraversal with the
// rank's own tree as both cellsI and cellsJ, matching spec §8 scenario
// 1. Multi-rank evaluation composes the same Driver methods directly
// instead, since the LET/attach steps between UpwardPass and
// DualTreeTraversal only apply when mpisize>1.
func (d *Driver) Evaluate(ctx context.Context, bodies []model.Body, localBounds model.Bounds) ([]model.Cell, []model.Body, error) {
	if len(bodies) == 0 {
		return nil, nil, fmmerrors.ErrEmptyDomain
	}
	cells, err := d.BuildTree(bodies, localBounds)
	if err != nil {
		return nil, nil, err
	}
	d.UpwardPass(ctx, cells)
	d.DualTreeTraversal(ctx, cells, cells, d.bodies, d.bodies, false)
	return d.cells, d.bodies, nil
}
