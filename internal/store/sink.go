package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// WriteOp is a single row write to be batched.
type WriteOp struct {
	Table  string         // Target table; must be in the sink allowlist
	Values map[string]any // Column values
	result chan<- error   // Internal - set by SendSync
}

// SinkConfig configures the write sink.
type SinkConfig struct {
	Store         *Store
	Tables        []string      // Tables the sink may write (default: llm_calls)
	BatchSize     int           // Flush after N ops (default: 100)
	FlushInterval time.Duration // Or after duration (default: 5s)
	QueueSize     int           // Buffer size (default: 1000)
	Logger        *slog.Logger
}

// Sink batches inserts and writes each batch in a single transaction.
// Rows are written with INSERT OR REPLACE.
type Sink struct {
	store  *Store
	logger *slog.Logger
	tables map[string]bool

	batchSize     int
	flushInterval time.Duration

	queue   chan WriteOp
	batch   []WriteOp
	batchMu sync.Mutex
	flushCh chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

var columnRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NewSink creates a new write sink.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = []string{"llm_calls"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tables := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tables[t] = true
	}

	return &Sink{
		store:         cfg.Store,
		logger:        cfg.Logger,
		tables:        tables,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		queue:         make(chan WriteOp, cfg.QueueSize),
		batch:         make([]WriteOp, 0, cfg.BatchSize),
		flushCh:       make(chan struct{}, 1),
	}
}

// Start begins processing write operations.
func (s *Sink) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.runBatcher()
}

// Stop flushes remaining operations and shuts the sink down.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Debug("stopping sink, flushing remaining operations")
		close(s.queue)
		s.wg.Wait()
		s.cancel()
	})
}

// Send queues a write (fire-and-forget).
func (s *Sink) Send(op WriteOp) {
	op.result = nil

	// Send on a closed queue panics; a stopped sink drops the op.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("sink closed, dropping write op", "table", op.Table)
		}
	}()

	select {
	case s.queue <- op:
	default:
		select {
		case s.queue <- op:
		case <-s.ctx.Done():
			s.logger.Warn("sink closed, dropping write op", "table", op.Table)
		}
	}
}

// SendSync queues a write, flushes the pending batch and waits for the
// commit.
func (s *Sink) SendSync(ctx context.Context, op WriteOp) error {
	resultCh := make(chan error, 1)
	op.result = resultCh

	select {
	case s.queue <- op:
	case <-s.ctx.Done():
		return fmt.Errorf("sink closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resultCh:
		return err
	case <-s.ctx.Done():
		return fmt.Errorf("sink closed while waiting for result")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush requests an immediate flush of the current batch.
func (s *Sink) Flush() {
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

func (s *Sink) runBatcher() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case op, ok := <-s.queue:
			if !ok {
				s.flushBatch()
				return
			}
			s.addToBatch(op)
		case <-ticker.C:
			s.flushBatch()
		case <-s.flushCh:
			s.flushBatch()
		}
	}
}

func (s *Sink) addToBatch(op WriteOp) {
	s.batchMu.Lock()
	s.batch = append(s.batch, op)
	// A waiting caller flushes its batch right away.
	shouldFlush := len(s.batch) >= s.batchSize || op.result != nil
	s.batchMu.Unlock()

	if shouldFlush {
		s.flushBatch()
	}
}

func (s *Sink) flushBatch() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	ops := s.batch
	s.batch = make([]WriteOp, 0, s.batchSize)
	s.batchMu.Unlock()

	s.logger.Debug("flushing batch", "count", len(ops))

	// Invalid ops fail on their own without poisoning the batch.
	valid := ops[:0:0]
	for _, op := range ops {
		if err := s.validate(op); err != nil {
			s.logger.Error("rejecting write op", "table", op.Table, "error", err)
			reply(op, err)
			continue
		}
		valid = append(valid, op)
	}
	if len(valid) == 0 {
		return
	}

	// Stop cancels s.ctx only after the final flush returns.
	err := s.store.inTx(context.WithoutCancel(s.ctx), func(tx *sql.Tx) error {
		for _, op := range valid {
			query, args := insertSQL(op)
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("insert into %s: %w", op.Table, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("batch write failed", "count", len(valid), "error", err)
	}
	for _, op := range valid {
		reply(op, err)
	}
}

func (s *Sink) validate(op WriteOp) error {
	if !s.tables[op.Table] {
		return fmt.Errorf("table %q is not writable through the sink", op.Table)
	}
	if len(op.Values) == 0 {
		return fmt.Errorf("no values")
	}
	for col := range op.Values {
		if !columnRe.MatchString(col) {
			return fmt.Errorf("invalid column name %q", col)
		}
	}
	return nil
}

func reply(op WriteOp, err error) {
	if op.result != nil {
		op.result <- err
		close(op.result)
	}
}

// insertSQL builds an INSERT OR REPLACE with columns in sorted order.
func insertSQL(op WriteOp) (string, []any) {
	cols := make([]string, 0, len(op.Values))
	for c := range op.Values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = op.Values[c]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		op.Table, strings.Join(cols, ", "), placeholders), args
}
