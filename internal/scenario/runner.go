// =============================================
// File: internal/scenario/runner.go
// =============================================
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/memecurve/internal/quote"
	"github.com/rovshanmuradov/memecurve/internal/router"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// SetupFunc runs once per engine before the first step, e.g. to subscribe
// handlers to its bus.
type SetupFunc func(name string, e *Engine) error

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int
	Op      OperationType
	Summary string
	Err     error // error returned by the engine, expected or not
}

// Result is the outcome of one scenario. Engine stays open for inspection
// until Close.
type Result struct {
	Name     string
	Engine   *Engine
	Accounts map[string]solana.PublicKey
	Curves   map[string]solana.PublicKey
	Steps    []StepResult
}

// Close releases the scenario engine.
func (r *Result) Close(ctx context.Context) error {
	if r == nil || r.Engine == nil {
		return nil
	}
	return r.Engine.Close(ctx)
}

// Runner executes scenarios, each against its own engine.
type Runner struct {
	opts   Options
	setup  SetupFunc
	logger *zap.Logger
}

// NewRunner creates a runner. setup may be nil.
func NewRunner(opts Options, setup SetupFunc, logger *zap.Logger) *Runner {
	return &Runner{opts: opts, setup: setup, logger: logger.Named("scenario")}
}

// RunAll runs independent scenarios concurrently, at most parallel at a time.
// The first failing scenario cancels the rest; results of finished scenarios
// are returned either way.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario, parallel int) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := r.Run(gctx, sc)
			results[i] = res
			return err
		})
	}
	return results, g.Wait()
}

// Run executes one scenario. On failure the partial result is returned
// together with the error.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	logger := r.logger.With(zap.String("scenario", sc.Name))
	opts := r.opts
	programID, err := ScenarioProgramID(r.opts.Policy.ProgramID, sc.Name)
	if err != nil {
		return nil, err
	}
	opts.Policy.ProgramID = programID
	engine, err := NewEngine(opts, logger)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Name:     sc.Name,
		Engine:   engine,
		Accounts: make(map[string]solana.PublicKey),
		Curves:   make(map[string]solana.PublicKey),
	}
	if r.setup != nil {
		if err := r.setup(sc.Name, engine); err != nil {
			return res, fmt.Errorf("scenario %q setup: %w", sc.Name, err)
		}
	}

	ex := &executor{programID: programID, engine: engine, res: res, logger: logger}
	for _, a := range sc.Accounts {
		key, err := ex.account(a.Name)
		if err != nil {
			return res, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		if a.Balance != "" {
			amt, err := types.ParseUnits(a.Balance, types.Decimals)
			if err != nil {
				return res, fmt.Errorf("scenario %q account %s: %w", sc.Name, a.Name, err)
			}
			engine.Ledger.Deposit(r.opts.Router.BaseMint, key, amt)
		}
	}

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		st := &sc.Steps[i]
		summary, stepErr := ex.step(ctx, st)
		res.Steps = append(res.Steps, StepResult{Index: i + 1, Op: st.Op, Summary: summary, Err: stepErr})

		if err := checkExpectation(st, stepErr); err != nil {
			logger.Error("Scenario step failed",
				zap.Int("step", i+1),
				zap.String("op", string(st.Op)),
				zap.Error(err))
			return res, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, i+1, st.Op, err)
		}
		if st.ExpectGraduated != nil {
			if err := ex.checkGraduated(st); err != nil {
				return res, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, i+1, st.Op, err)
			}
		}
		logger.Debug("Step done", zap.Int("step", i+1), zap.String("op", string(st.Op)), zap.String("summary", summary))
	}

	logger.Info("Scenario completed", zap.Int("steps", len(sc.Steps)), zap.Int("curves", len(res.Curves)))
	return res, nil
}

// ScenarioProgramID derives the program id of one scenario from base, so that
// curve and account addresses of different scenarios never collide.
func ScenarioProgramID(base solana.PublicKey, name string) (solana.PublicKey, error) {
	seed := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String(), "-", "")
	return solana.CreateWithSeed(base, seed, solana.SystemProgramID)
}

func checkExpectation(st *Step, err error) error {
	if st.ExpectError == "" {
		return err
	}
	want := ErrorNames[st.ExpectError]
	if err == nil {
		return fmt.Errorf("expected %s error, step succeeded", st.ExpectError)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected %s error, got: %w", st.ExpectError, err)
	}
	return nil
}

// executor carries per-scenario state between steps.
type executor struct {
	programID solana.PublicKey
	engine    *Engine
	res       *Result
	lastQuote *quote.Quote
	logger    *zap.Logger
}

// account maps a scenario name to a stable key derived from the program id.
func (x *executor) account(name string) (solana.PublicKey, error) {
	if key, ok := x.res.Accounts[name]; ok {
		return key, nil
	}
	key, err := solana.CreateWithSeed(x.programID, name, solana.SystemProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("account %q: %w", name, err)
	}
	x.res.Accounts[name] = key
	return key, nil
}

// curve resolves an alias from a create step, a decimal index or a base58
// address.
func (x *executor) curve(ref string) (solana.PublicKey, error) {
	if key, ok := x.res.Curves[ref]; ok {
		return key, nil
	}
	if idx, err := strconv.ParseUint(ref, 10, 64); err == nil {
		c, err := x.engine.Registry.Lookup(idx)
		if err != nil {
			return solana.PublicKey{}, err
		}
		return c.Address(), nil
	}
	key, err := solana.PublicKeyFromBase58(ref)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: curve %q", types.ErrNotFound, ref)
	}
	return key, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	return types.ParseUnits(strings.TrimSpace(s), types.Decimals)
}

func (x *executor) deadline(st *Step) (time.Time, error) {
	if st.Deadline == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseDuration(st.Deadline)
	if err != nil {
		return time.Time{}, err
	}
	return x.engine.Clock.Now().Add(d), nil
}

func (x *executor) minOut(st *Step) (*uint256.Int, error) {
	switch st.MinOut {
	case "":
		return nil, nil
	case LastQuote:
		if x.lastQuote == nil {
			return nil, errors.New("min_out: no quote step ran yet")
		}
		return x.lastQuote.MinOutput.Clone(), nil
	default:
		return parseAmount(st.MinOut)
	}
}

// tokenAmount parses a sell amount; "all" and "NN%" refer to the caller's
// token balance on the curve.
func (x *executor) tokenAmount(raw string, caller, addr solana.PublicKey) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw != "all" && !strings.HasSuffix(raw, "%") {
		return parseAmount(raw)
	}
	c, err := x.engine.Registry.ByAddress(addr)
	if err != nil {
		return nil, err
	}
	balance := x.engine.Ledger.Balance(c.Meta().Mint, caller)
	if raw == "all" {
		return balance, nil
	}
	pct, err := strconv.ParseUint(strings.TrimSuffix(raw, "%"), 10, 64)
	if err != nil || pct == 0 || pct > 100 {
		return nil, fmt.Errorf("invalid percentage %q", raw)
	}
	return types.MulDiv(balance, uint256.NewInt(pct), uint256.NewInt(100))
}

func (x *executor) checkGraduated(st *Step) error {
	addr, err := x.curve(st.Curve)
	if err != nil {
		return err
	}
	snap, err := x.engine.Router.Snapshot(addr)
	if err != nil {
		return err
	}
	if snap.State.Graduated != *st.ExpectGraduated {
		return fmt.Errorf("expected graduated=%t, got %t", *st.ExpectGraduated, snap.State.Graduated)
	}
	return nil
}

func fmtUnits(x *uint256.Int) string {
	return types.ToDecimal(x).String()
}

func (x *executor) step(ctx context.Context, st *Step) (string, error) {
	var caller solana.PublicKey
	if st.Account != "" {
		key, err := x.account(st.Account)
		if err != nil {
			return "", err
		}
		caller = key
	}
	rt := x.engine.Router

	switch st.Op {
	case OperationCreate:
		payment := types.Zero()
		if st.Payment != "" {
			p, err := parseAmount(st.Payment)
			if err != nil {
				return "", err
			}
			payment = p
		}
		c, err := rt.CreateMeme(ctx, caller, st.Name, st.Symbol, st.URI, payment)
		if err != nil {
			return "", err
		}
		alias := st.As
		if alias == "" {
			alias = st.Symbol
		}
		x.res.Curves[alias] = c.Address()
		return fmt.Sprintf("created #%d %s at %s", c.Index(), st.Symbol, c.Address()), nil

	case OperationDeposit:
		amt, err := parseAmount(st.Amount)
		if err != nil {
			return "", err
		}
		x.engine.Ledger.Deposit(rt.Config().BaseMint, caller, amt)
		return fmt.Sprintf("deposited %s to %s", fmtUnits(amt), st.Account), nil

	case OperationBuy:
		addr, err := x.curve(st.Curve)
		if err != nil {
			return "", err
		}
		amt, err := parseAmount(st.Amount)
		if err != nil {
			return "", err
		}
		req := router.BuyRequest{Caller: caller, Curve: addr, BaseIn: amt}
		if st.Referrer != "" {
			if req.Referrer, err = x.account(st.Referrer); err != nil {
				return "", err
			}
		}
		if req.MinTokenOut, err = x.minOut(st); err != nil {
			return "", err
		}
		if req.Deadline, err = x.deadline(st); err != nil {
			return "", err
		}
		rec, err := rt.Buy(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("bought %s tokens for %s (fee %s, refund %s)",
			fmtUnits(rec.TokenOut), fmtUnits(rec.BaseIn), fmtUnits(rec.Fee.Total), fmtUnits(rec.Refund)), nil

	case OperationSell:
		addr, err := x.curve(st.Curve)
		if err != nil {
			return "", err
		}
		amt, err := x.tokenAmount(st.Amount, caller, addr)
		if err != nil {
			return "", err
		}
		req := router.SellRequest{Caller: caller, Curve: addr, TokenIn: amt}
		if req.MinBaseOut, err = x.minOut(st); err != nil {
			return "", err
		}
		if req.Deadline, err = x.deadline(st); err != nil {
			return "", err
		}
		rec, err := rt.Sell(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sold %s tokens for %s (fee %s)",
			fmtUnits(rec.TokenIn), fmtUnits(rec.BaseOut), fmtUnits(rec.Fee.Total)), nil

	case OperationClaim:
		refs := st.Curves
		if len(refs) == 0 {
			refs = []string{st.Curve}
		}
		addrs := make([]solana.PublicKey, 0, len(refs))
		for _, ref := range refs {
			addr, err := x.curve(ref)
			if err != nil {
				return "", err
			}
			addrs = append(addrs, addr)
		}
		rec, err := rt.ClaimFees(ctx, caller, addrs)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("claimed %s from %d curves", fmtUnits(rec.Total), len(rec.Claims)), nil

	case OperationStatus:
		addr, err := x.curve(st.Curve)
		if err != nil {
			return "", err
		}
		if err := rt.UpdateStatus(ctx, caller, addr, st.Text); err != nil {
			return "", err
		}
		return fmt.Sprintf("status set to %q", strings.TrimSpace(st.Text)), nil

	case OperationContribute:
		addr, err := x.curve(st.Curve)
		if err != nil {
			return "", err
		}
		amt, err := parseAmount(st.Amount)
		if err != nil {
			return "", err
		}
		if err := rt.Contribute(ctx, caller, addr, amt); err != nil {
			return "", err
		}
		return fmt.Sprintf("contributed %s", fmtUnits(amt)), nil

	case OperationRedeem:
		addr, err := x.curve(st.Curve)
		if err != nil {
			return "", err
		}
		rec, err := rt.Redeem(ctx, caller, addr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("redeemed %s tokens for %s", fmtUnits(rec.Tokens), fmtUnits(rec.Payout)), nil

	case OperationQuote:
		return x.quote(st)

	case OperationAdvance:
		d, err := time.ParseDuration(st.Duration)
		if err != nil {
			return "", err
		}
		x.engine.Clock.Advance(d)
		return fmt.Sprintf("clock advanced by %s", d), nil
	}
	return "", fmt.Errorf("unsupported operation: %q", st.Op)
}

func (x *executor) quote(st *Step) (string, error) {
	addr, err := x.curve(st.Curve)
	if err != nil {
		return "", err
	}
	amt, err := parseAmount(st.Amount)
	if err != nil {
		return "", err
	}
	mc := x.engine.Multicall
	var q quote.Quote
	switch {
	case st.Side == types.SideBuy && st.Exact == "in":
		q, err = mc.QuoteBuyIn(addr, amt, st.ToleranceBps)
	case st.Side == types.SideSell && st.Exact == "in":
		q, err = mc.QuoteSellIn(addr, amt, st.ToleranceBps)
	case st.Side == types.SideBuy:
		q, err = mc.QuoteBuyOut(addr, amt, st.ToleranceBps)
	default:
		q, err = mc.QuoteSellOut(addr, amt, st.ToleranceBps)
	}
	if err != nil {
		return "", err
	}
	x.lastQuote = &q
	return fmt.Sprintf("quote %s exact-%s: output %s, min %s, slippage %d bps",
		st.Side, st.Exact, fmtUnits(q.Output), fmtUnits(q.MinOutput), q.SlippageBps), nil
}
