// Package worker implements the Worker Pool (spec §4.8): a fixed number of
// goroutines, each draining the query queue, compiling and executing one
// query at a time, and pushing its Result. The fixed goroutine fan-out is
// supervised with golang.org/x/sync/errgroup bound to a shutdown context.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chorus-fhe/ppcnn/compiler"
	"github.com/chorus-fhe/ppcnn/executor"
	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/layers"
	"github.com/chorus-fhe/ppcnn/metrics"
	"github.com/chorus-fhe/ppcnn/model"
	"github.com/chorus-fhe/ppcnn/plan"
	"github.com/chorus-fhe/ppcnn/ppcnnerr"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
)

// DefaultCount is the default worker count (spec §4.8, §5).
const DefaultCount = 2

// Resolver locates the topology descriptor and weight store for a
// dataset/model name pair. The server wires this to wherever it keeps
// trained models on disk; tests can supply a fixed in-memory Resolver.
type Resolver interface {
	Resolve(dataset, modelName string) (*model.Descriptor, model.WeightStore, plan.Options, error)
}

// Pool is the fixed-size worker pool draining one Queries queue and
// filling one Results queue.
type Pool struct {
	Count        int
	Registry     *registry.Registry
	Queries      *queue.Queries
	Results      *queue.Results
	Resolver     Resolver
	Engine       fhe.Engine
	ResultLifetime time.Duration
	Metrics      *metrics.Server
	Log          *logrus.Logger
}

// Run starts Count worker loops and blocks until ctx is cancelled or a
// worker returns a non-nil error. Workers never retry inside the loop
// (spec §4.8): a compiler or executor failure is reported as a failed
// Result, not an error returned from Run.
func (p *Pool) Run(ctx context.Context) error {
	count := p.Count
	if count <= 0 {
		count = DefaultCount
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		id := i
		g.Go(func() error { return p.loop(ctx, id) })
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int) error {
	for {
		queryID, q, err := p.Queries.BlockingPopAny(ctx)
		if err != nil {
			return nil // context cancelled: shut down quietly
		}
		p.Metrics.WorkersBusy.Inc()
		p.execute(queryID, q, workerID)
		p.Metrics.WorkersBusy.Dec()
	}
}

func (p *Pool) execute(queryID int64, q queue.Query, workerID int) {
	log := p.Log.WithFields(logrus.Fields{"worker": workerID, "query_id": queryID, "dataset": q.Dataset, "model": q.Model})

	result, err := p.run(q)
	if err != nil {
		log.WithError(err).Warn("query execution failed")
		p.Metrics.QueriesFailed.Inc()
		result = queue.Result{Success: false}
	}

	if pushErr := p.Results.PushSweeping(queryID, result, p.ResultLifetime); pushErr != nil {
		log.WithError(pushErr).Error("failed to push result")
	}
}

func (p *Pool) run(q queue.Query) (queue.Result, error) {
	bundle, err := p.Registry.Get(q.KeyID)
	if err != nil {
		return queue.Result{}, err
	}

	desc, weights, opts, err := p.Resolver.Resolve(q.Dataset, q.Model)
	if err != nil {
		return queue.Result{}, err
	}

	if len(q.Input) != q.InH*q.InW*q.InC {
		return queue.Result{}, ppcnnerr.ErrShapeMismatch
	}

	c := compiler.New(p.Engine)
	plan, err := c.Compile(desc, weights, opts)
	if err != nil {
		return queue.Result{}, err
	}

	in3 := layers.Tensor3{H: q.InH, W: q.InW, C: q.InC, Data: q.Input}
	ex := executor.New(p.Engine, bundle.Relin)
	out, err := ex.Run(plan.Nodes, in3)
	if err != nil {
		return queue.Result{}, err
	}

	return queue.Result{Success: true, Outputs: out}, nil
}

// FileResolver resolves datasets/models to a directory layout of
// <root>/<dataset>/<model>/{topology.json, weights/}. Every Resolve call
// re-reads and re-parses the topology descriptor; the compiler is cheap
// enough relative to a worker's execute pass that caching is not worth the
// invalidation complexity it would add.
type FileResolver struct {
	Root string
	Opts plan.Options
}

func (r FileResolver) Resolve(dataset, modelName string) (*model.Descriptor, model.WeightStore, plan.Options, error) {
	base := filepath.Join(r.Root, dataset, modelName)
	raw, err := os.ReadFile(filepath.Join(base, "topology.json"))
	if err != nil {
		return nil, nil, plan.Options{}, fmt.Errorf("resolve %s/%s: %w", dataset, modelName, ppcnnerr.ErrIO)
	}
	desc, err := model.ParseDescriptor(raw)
	if err != nil {
		return nil, nil, plan.Options{}, err
	}
	return desc, model.DirStore{Root: filepath.Join(base, "weights")}, r.Opts, nil
}
