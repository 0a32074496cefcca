package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/markdave123-py/docbundle/internal/core"
	"github.com/markdave123-py/docbundle/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPoolUnavailable is returned by Submit when the pool cannot accept work,
// either because runtime initialization failed or because the pool was closed.
var ErrPoolUnavailable = errors.New("extraction pool unavailable")

// PoolConfig tunes the extraction pool.
//
// Size:           number of long-lived workers, each owning one runtime instance.
// QueueSize:      buffered job slots before Submit falls back to a detached enqueue.
// ExtractTimeout: per-request deadline; zero disables it.
type PoolConfig struct {
	Size           int
	QueueSize      int
	ExtractTimeout time.Duration
}

// RuntimeConfig tunes a DocconvRuntime instance.
//
// ScratchDir:       parent directory for per-instance scratch space ("" = os temp dir).
// RequirePDFToText: fail Init when the pdftotext binary docconv shells out to is missing.
type RuntimeConfig struct {
	ScratchDir       string
	RequirePDFToText bool
}

// RuntimeFactory builds the runtime instance owned by worker id.
type RuntimeFactory func(id int) core.ExtractionRuntime

// ReplyFunc receives the response of one accepted request.
type ReplyFunc func(models.ExtractionResponse)

// job is one queued extraction request with its reply path.
type job struct {
	req   models.ExtractionRequest
	reply ReplyFunc
}

// instance pairs a runtime with the lock that keeps it single-flight.
type instance struct {
	mu sync.Mutex
	rt core.ExtractionRuntime
}

// Pool runs extraction requests on a fixed set of pre-initialized runtimes:
//
// instances: one runtime per worker, initialized together at most once.
// jobs:      in-memory queue drained by the workers.
// done:      closed by Close; stops workers and detached enqueuers.
type Pool struct {
	cfg     PoolConfig
	log     *zap.Logger
	metrics *Metrics

	instances []*instance

	initOnce    sync.Once
	initCtx     context.Context // outlives any single Warm caller; cancelled by Close
	initCancel  context.CancelFunc
	initStarted atomic.Bool
	initDone    chan struct{}
	initErr     error

	jobs     chan job
	done     chan struct{}
	overflow sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	group  *errgroup.Group
}

// DocconvRuntime implements core.ExtractionRuntime on top of sajari/docconv and pdfcpu.
//
// dir:     private scratch directory created by Init; PDF pages are split into it.
// pdfConf: pdfcpu configuration shared by every request on this instance.
type DocconvRuntime struct {
	cfg     RuntimeConfig
	id      int
	log     *zap.Logger
	dir     string
	pdfConf *model.Configuration
}
