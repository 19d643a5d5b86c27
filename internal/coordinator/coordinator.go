package coordinator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokendesk/internal/gate"
	"tokendesk/internal/history"
	"tokendesk/internal/ledger"
	"tokendesk/internal/models"
)

const (
	DefaultClearDelay = 5 * time.Second
	DefaultDecimals   = 18
	auditTimeout      = 5 * time.Second
)

// ReadModel is the derived token view refreshed after a successful write.
// Decimals reports ok=false until the token's decimals were fetched.
type ReadModel interface {
	RefreshBalance(ctx context.Context) error
	Decimals() (uint8, bool)
}

// Auditor mirrors history entries to durable storage. It is write-only;
// the in-memory history stays authoritative.
type Auditor interface {
	UpsertOperation(ctx context.Context, op models.Operation) error
}

// Deps are the collaborators a Coordinator drives. Zero fields get defaults
// where one exists; Ledger is required.
type Deps struct {
	Ledger    ledger.Client
	Addresses ledger.AddressParser
	ReadModel ReadModel
	Auditor   Auditor
	History   *history.Log
	Gate      *gate.Gate
	Timer     *gate.StatusTimer
}

// Options tune coordinator behavior
type Options struct {
	ClearDelay      time.Duration
	DefaultDecimals uint8
	Now             func() time.Time
}

// Coordinator drives each user action through validation, admission,
// submission, finality and resolution. At most one action is in flight.
type Coordinator struct {
	ledger    ledger.Client
	addresses ledger.AddressParser
	readModel ReadModel
	auditor   Auditor
	history   *history.Log
	gate      *gate.Gate
	timer     *gate.StatusTimer

	clearDelay      time.Duration
	defaultDecimals uint8
	now             func() time.Time

	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator
func New(deps Deps, opts Options, logger *zap.Logger) *Coordinator {
	logger = logger.Named("coordinator")

	if deps.Addresses == nil {
		deps.Addresses = ledger.HexAddresses{}
	}
	if deps.History == nil {
		deps.History = history.NewLog()
	}
	if deps.Gate == nil {
		deps.Gate = gate.NewGate()
	}
	if deps.Timer == nil {
		deps.Timer = gate.NewStatusTimer(deps.Gate, logger)
	}
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = DefaultClearDelay
	}
	if opts.DefaultDecimals == 0 {
		opts.DefaultDecimals = DefaultDecimals
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		ledger:          deps.Ledger,
		addresses:       deps.Addresses,
		readModel:       deps.ReadModel,
		auditor:         deps.Auditor,
		history:         deps.History,
		gate:            deps.Gate,
		timer:           deps.Timer,
		clearDelay:      opts.ClearDelay,
		defaultDecimals: opts.DefaultDecimals,
		now:             opts.Now,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Submit validates and admits a write action, then runs it in the background.
// A validation failure is displayed and returned as *ValidationError. A request
// made while another action is in flight is dropped with ErrBusy and changes
// nothing.
func (c *Coordinator) Submit(req Request) (*Run, error) {
	p, err := c.validate(req)
	if err != nil {
		if verr, ok := err.(*ValidationError); ok {
			c.logger.Warn("Validation failed",
				zap.String("action", string(req.Action)),
				zap.String("field", verr.Field))
			c.gate.ShowError(verr.Message)
			c.timer.Arm(c.clearDelay)
		}
		return nil, err
	}

	pending := pendingMessage(p.action)
	if !c.gate.TryAcquire(p.action, pending) {
		c.logger.Debug("Action dropped while another is in flight",
			zap.String("action", string(p.action)))
		return nil, ErrBusy
	}

	run := newRun(uuid.NewString(), p.action)

	c.logger.Info("Action admitted",
		zap.String("run_id", run.ID),
		zap.String("action", string(p.action)),
		zap.String("amount", p.amountText))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.execute(run, p, pending)
	}()

	return run, nil
}

// CheckAllowance admits a read-only allowance query for spender. It shares the
// gate with write actions but never touches the history.
func (c *Coordinator) CheckAllowance(spender string) (*Run, error) {
	addr, err := c.validateSpender(spender)
	if err != nil {
		verr := err.(*ValidationError)
		c.gate.ShowError(verr.Message)
		c.timer.Arm(c.clearDelay)
		return nil, err
	}

	if !c.gate.TryAcquire(models.ActionCheckAllowance, allowancePendingMessage) {
		return nil, ErrBusy
	}

	run := newRun(uuid.NewString(), models.ActionCheckAllowance)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.queryAllowance(run, addr)
	}()

	return run, nil
}

func (c *Coordinator) execute(run *Run, p *params, pending string) {
	logger := c.logger.With(
		zap.String("run_id", run.ID),
		zap.String("action", string(p.action)))

	var outcome Outcome
	resolve := func(status models.DisplayStatus, message, ref string) {
		outcome = Outcome{Status: status, Message: message, Reference: ref}
		c.gate.Release(status, message)
	}

	// ref is set once the ledger assigned one
	var ref string

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Action panicked", zap.String("reference", ref), zap.Any("panic", r))
			if outcome.Status == "" {
				resolve(models.DisplayStatusError, fallbackMessage, ref)
				if ref != "" {
					c.recordOutcome(ref, models.OperationStatusError, fallbackMessage)
				}
				c.timer.Arm(c.clearDelay)
			}
		}
		run.finish(outcome)
	}()

	submitted, err := c.ledger.Submit(c.ctx, ledger.Request{
		Action: p.action,
		Amount: p.amount,
		Target: p.target,
	})
	if err != nil {
		// nothing reached the ledger, so nothing is recorded
		logger.Warn("Submission failed", zap.Error(err))
		resolve(models.DisplayStatusError, DeriveMessage(err), "")
		c.timer.Arm(c.clearDelay)
		return
	}

	ref = submitted
	logger.Info("Operation submitted", zap.String("reference", ref))

	op := models.Operation{
		Kind:          p.action,
		Amount:        p.amount,
		AmountText:    p.amountText,
		Decimals:      p.decimals,
		TargetAddress: p.target,
		SubmittedAt:   c.now(),
		Status:        models.OperationStatusPending,
		Message:       pending,
		ExternalRef:   ref,
	}
	if err := c.history.Append(op); err != nil {
		logger.Error("Failed to record operation", zap.String("reference", ref), zap.Error(err))
	} else {
		c.audit(op)
	}

	receipt, err := c.ledger.AwaitFinality(c.ctx, ref)
	if err != nil {
		msg := DeriveMessage(err)
		logger.Warn("Operation failed", zap.String("reference", ref), zap.Error(err))
		resolve(models.DisplayStatusError, msg, ref)
		c.recordOutcome(ref, models.OperationStatusError, msg)
		c.timer.Arm(c.clearDelay)
		return
	}

	msg := successMessage(p)
	fields := []zap.Field{zap.String("reference", ref)}
	if receipt != nil {
		fields = append(fields, zap.Uint64("block", receipt.BlockNumber), zap.Uint64("gas_used", receipt.GasUsed))
	}
	logger.Info("Operation confirmed", fields...)

	resolve(models.DisplayStatusSuccess, msg, ref)
	c.recordOutcome(ref, models.OperationStatusSuccess, msg)
	c.timer.Arm(c.clearDelay)

	if c.readModel != nil {
		if err := c.readModel.RefreshBalance(c.ctx); err != nil {
			logger.Warn("Failed to refresh balance", zap.Error(err))
		}
	}
}

func (c *Coordinator) queryAllowance(run *Run, spender common.Address) {
	var outcome Outcome

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Allowance query panicked", zap.Any("panic", r))
			outcome = Outcome{Status: models.DisplayStatusError, Message: allowanceErrorMessage}
		}
		c.gate.Release(outcome.Status, outcome.Message)
		c.timer.Arm(c.clearDelay)
		run.finish(outcome)
	}()

	amount, err := c.ledger.Allowance(c.ctx, spender)
	if err != nil {
		c.logger.Warn("Allowance query failed",
			zap.String("run_id", run.ID),
			zap.String("spender", spender.Hex()),
			zap.Error(err))
		outcome = Outcome{Status: models.DisplayStatusError, Message: allowanceErrorMessage}
		return
	}

	outcome = Outcome{
		Status:    models.DisplayStatusSuccess,
		Message:   fmt.Sprintf("Allowance: %s tokens", models.FormatAmount(amount, c.decimals())),
		Allowance: new(big.Int).Set(amount),
	}
}

func (c *Coordinator) recordOutcome(ref string, status models.OperationStatus, message string) {
	op, err := c.history.UpdateStatus(ref, status, message)
	if err != nil {
		c.logger.Error("Failed to update operation status",
			zap.String("reference", ref),
			zap.Error(err))
		return
	}
	c.audit(op)
}

func (c *Coordinator) audit(op models.Operation) {
	if c.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, auditTimeout)
	defer cancel()
	if err := c.auditor.UpsertOperation(ctx, op); err != nil {
		c.logger.Warn("Failed to mirror operation",
			zap.String("reference", op.ExternalRef),
			zap.Error(err))
	}
}

func (c *Coordinator) decimals() uint8 {
	if c.readModel != nil {
		if d, ok := c.readModel.Decimals(); ok {
			return d
		}
	}
	return c.defaultDecimals
}

// DisplayStatus returns the current gate and display state
func (c *Coordinator) DisplayStatus() models.GateState {
	return c.gate.Current()
}

// IsBusyFor reports whether the given action would be dropped right now
func (c *Coordinator) IsBusyFor(action models.Action) bool {
	return c.gate.IsBusyFor(action)
}

// History returns a snapshot of recorded operations in submission order
func (c *Coordinator) History() []models.Operation {
	return c.history.List()
}

// HistoryLog exposes the underlying log for lookups and stats
func (c *Coordinator) HistoryLog() *history.Log {
	return c.history
}

// Shutdown cancels in-flight actions and waits for them to resolve
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.logger.Info("Shutting down coordinator")
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Coordinator stopped gracefully")
		return nil
	case <-time.After(timeout):
		c.logger.Warn("Coordinator shutdown timed out")
		return fmt.Errorf("coordinator shutdown timed out after %s", timeout)
	}
}
