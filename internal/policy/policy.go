package policy

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/cvealert/internal/errors"
	"github.com/daimoniac/cvealert/internal/types"
)

// DefaultExpression notifies critical records modified within the window
const DefaultExpression = `severity == "CRITICAL" && ageDays <= maxAgeDays`

// DefaultMaxAgeDays is the recency window in whole days
const DefaultMaxAgeDays = 15

// NotabilityEngine decides whether a CVE record is worth a notification.
// Whether the record was already notified is not its concern.
type NotabilityEngine interface {
	Evaluate(record types.VendorRecord, now time.Time) (*Decision, error)
}

// PolicyConfig defines a CEL-based notability rule
type PolicyConfig struct {
	// Expression is the CEL expression that must evaluate to true for a
	// record to be notified. Available variables:
	//   - id: CVE identifier
	//   - vendor: vendor keyword the record was found for
	//   - severity: CVSS v3 base severity, "unknown" when absent
	//   - ageDays: whole days since last modification
	//   - maxAgeDays: configured recency window
	//   - hasFix: whether a patch/fix reference was found
	Expression string `yaml:"expression" json:"expression"`

	// MaxAgeDays is exposed to the expression as maxAgeDays
	MaxAgeDays int `yaml:"maxAgeDays" json:"maxAgeDays"`
}

// Decision represents the result of evaluating one record
type Decision struct {
	Notable bool
	AgeDays int
	Reason  string
}

// Engine implements NotabilityEngine using a compiled CEL program
type Engine struct {
	logger     *slog.Logger
	config     PolicyConfig
	celProgram cel.Program
}

// NewEngine compiles the configured expression. Compilation failures are
// permanent: the service cannot run without a valid rule.
func NewEngine(logger *slog.Logger, config PolicyConfig) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(config.Expression) == "" {
		config.Expression = DefaultExpression
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = DefaultMaxAgeDays
	}

	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("vendor", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("ageDays", cel.IntType),
		cel.Variable("maxAgeDays", cel.IntType),
		cel.Variable("hasFix", cel.BoolType),
	)
	if err != nil {
		return nil, errors.NewPermanentf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.NewPermanentf("failed to compile filter expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, errors.NewPermanentf("filter expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.NewPermanentf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:     logger,
		config:     config,
		celProgram: program,
	}, nil
}

// Expression returns the rule in effect
func (e *Engine) Expression() string {
	return e.config.Expression
}

// MaxAgeDays returns the recency window in effect
func (e *Engine) MaxAgeDays() int {
	return e.config.MaxAgeDays
}

// Evaluate runs the rule against a record as of now
func (e *Engine) Evaluate(record types.VendorRecord, now time.Time) (*Decision, error) {
	age := record.AgeDays(now)

	out, _, err := e.celProgram.Eval(map[string]interface{}{
		"id":         record.ID,
		"vendor":     record.Vendor,
		"severity":   string(record.Severity),
		"ageDays":    int64(age),
		"maxAgeDays": int64(e.config.MaxAgeDays),
		"hasFix":     record.HasFix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate filter for %s: %w", record.ID, err)
	}

	notable, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("filter expression did not return a boolean: %v", out.Value())
	}

	decision := &Decision{Notable: notable, AgeDays: age}
	if notable {
		decision.Reason = fmt.Sprintf("notable: severity=%s, age=%dd", record.Severity, age)
	} else {
		decision.Reason = fmt.Sprintf("filtered: severity=%s, age=%dd, window=%dd", record.Severity, age, e.config.MaxAgeDays)
	}

	e.logger.Debug("filter evaluated",
		"cve_id", record.ID,
		"vendor", record.Vendor,
		"severity", record.Severity,
		"age_days", age,
		"notable", notable)

	return decision, nil
}

// MatchVendor returns the first vendor, in list order, whose name occurs in
// text (case-insensitive).
func MatchVendor(text string, vendors []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, v := range vendors {
		if v == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(v)) {
			return v, true
		}
	}
	return "", false
}
