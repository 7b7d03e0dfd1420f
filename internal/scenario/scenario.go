// =============================================
// File: internal/scenario/scenario.go
// =============================================
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/memecurve/internal/types"
)

// OperationType is the action of one scenario step.
type OperationType string

const (
	OperationCreate     OperationType = "create"
	OperationDeposit    OperationType = "deposit"
	OperationBuy        OperationType = "buy"
	OperationSell       OperationType = "sell"
	OperationClaim      OperationType = "claim"
	OperationStatus     OperationType = "status"
	OperationContribute OperationType = "contribute"
	OperationRedeem     OperationType = "redeem"
	OperationQuote      OperationType = "quote"
	OperationAdvance    OperationType = "advance"
)

// LastQuote as min_out reuses the MinOutput of the latest quote step.
const LastQuote = "last_quote"

// Account is a named participant and its opening base balance.
type Account struct {
	Name    string `yaml:"name"`
	Balance string `yaml:"balance"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op      OperationType `yaml:"op"`
	Account string        `yaml:"account"`
	Curve   string        `yaml:"curve"`
	Curves  []string      `yaml:"curves"`

	// create
	Name    string `yaml:"name"`
	Symbol  string `yaml:"symbol"`
	URI     string `yaml:"uri"`
	Payment string `yaml:"payment"`
	As      string `yaml:"as"`

	// buy / sell / contribute / deposit / quote. Sell also accepts "all"
	// and "NN%" of the account's token balance.
	Amount   string `yaml:"amount"`
	MinOut   string `yaml:"min_out"`
	Referrer string `yaml:"referrer"`
	// Deadline is relative to the scenario clock, e.g. "-1s".
	Deadline string `yaml:"deadline"`

	// quote
	Side         types.Side `yaml:"side"`
	Exact        string     `yaml:"exact"` // in | out
	ToleranceBps uint64     `yaml:"tolerance_bps"`

	Text     string `yaml:"text"`
	Duration string `yaml:"duration"`

	// ExpectError names the error the step must fail with, see ErrorNames.
	ExpectError string `yaml:"expect_error"`
	// ExpectGraduated asserts the curve state after the step.
	ExpectGraduated *bool `yaml:"expect_graduated"`
}

// Scenario is an ordered script run against a fresh engine.
type Scenario struct {
	Name     string    `yaml:"name"`
	Accounts []Account `yaml:"accounts"`
	Steps    []Step    `yaml:"steps"`
}

// File is the YAML document: one scenario or a list of them.
type File struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// ErrorNames maps expect_error values to engine errors.
var ErrorNames = map[string]error{
	"expired":              types.ErrExpired,
	"slippage":             types.ErrSlippageExceeded,
	"insufficient_reserve": types.ErrInsufficientReserve,
	"below_floor":          types.ErrBelowFloor,
	"not_graduated":        types.ErrNotGraduated,
	"already_redeemed":     types.ErrAlreadyRedeemed,
	"insufficient_balance": types.ErrInsufficientBalance,
	"not_found":            types.ErrNotFound,
	"invalid_metadata":     types.ErrDuplicateOrInvalidMetadata,
	"transfer_failed":      types.ErrTransferFailed,
	"graduated":            types.ErrGraduated,
	"invalid_amount":       types.ErrInvalidAmount,
	"invalid_account":      types.ErrInvalidAccount,
}

// Manager loads scenario files.
type Manager struct {
	logger *zap.Logger
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// LoadFile reads scenarios from a YAML file. Both a single scenario document
// and a `scenarios:` list are accepted.
func (m *Manager) LoadFile(path string) ([]*Scenario, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	scenarios, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	m.logger.Info("Loaded scenarios", zap.String("path", cleanPath), zap.Int("count", len(scenarios)))
	return scenarios, nil
}

// Parse decodes and validates scenarios.
func Parse(data []byte) ([]*Scenario, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Scenarios) == 0 {
		var single Scenario
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if len(single.Steps) > 0 {
			file.Scenarios = []*Scenario{&single}
		}
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("no scenarios found")
	}

	for i, sc := range file.Scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}
	return file.Scenarios, nil
}

// Validate checks the structure of every step. Amounts and names are resolved
// at run time.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("no steps")
	}
	seen := make(map[string]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.Name == "" {
			return errors.New("account without name")
		}
		if seen[a.Name] {
			return fmt.Errorf("account %q declared twice", a.Name)
		}
		seen[a.Name] = true
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Steps[i].Op, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	needAccount := st.Op != OperationAdvance && st.Op != OperationQuote
	if needAccount && st.Account == "" {
		return errors.New("account is required")
	}
	if st.ExpectError != "" {
		if _, ok := ErrorNames[st.ExpectError]; !ok {
			return fmt.Errorf("unknown expect_error %q", st.ExpectError)
		}
	}

	switch st.Op {
	case OperationCreate:
		if st.Name == "" || st.Symbol == "" {
			return errors.New("name and symbol are required")
		}
	case OperationDeposit, OperationContribute:
		if st.Amount == "" {
			return errors.New("amount is required")
		}
	case OperationBuy, OperationSell:
		if st.Curve == "" || st.Amount == "" {
			return errors.New("curve and amount are required")
		}
		if st.Deadline != "" {
			if _, err := time.ParseDuration(st.Deadline); err != nil {
				return fmt.Errorf("deadline: %w", err)
			}
		}
	case OperationClaim:
		if len(st.Curves) == 0 && st.Curve == "" {
			return errors.New("curve or curves is required")
		}
	case OperationStatus, OperationRedeem:
		if st.Curve == "" {
			return errors.New("curve is required")
		}
	case OperationQuote:
		if st.Curve == "" || st.Amount == "" {
			return errors.New("curve and amount are required")
		}
		if st.Side != types.SideBuy && st.Side != types.SideSell {
			return fmt.Errorf("side must be %q or %q", types.SideBuy, types.SideSell)
		}
		st.Exact = strings.ToLower(st.Exact)
		if st.Exact == "" {
			st.Exact = "in"
		}
		if st.Exact != "in" && st.Exact != "out" {
			return errors.New(`exact must be "in" or "out"`)
		}
		if st.ToleranceBps == 0 {
			st.ToleranceBps = types.BpsDenominator
		}
		if err := types.ValidateTolerance(st.ToleranceBps); err != nil {
			return err
		}
	case OperationAdvance:
		if _, err := time.ParseDuration(st.Duration); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
	default:
		return fmt.Errorf("unsupported operation: %q", st.Op)
	}
	return nil
}
