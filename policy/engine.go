// Package policy classifies downstream failures as retryable or terminal.
package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// Classifier decides whether a downstream failure is worth retrying.
type Classifier interface {
	IsRetryable(ctx context.Context, service domain.ServiceID, statusCode int, message string) (bool, error)
}

// Engine is the OPA policy engine. Patterns are supplied as policy input so
// the lexicon stays configurable without editing the policy.
type Engine struct {
	query    rego.PreparedEvalQuery
	patterns map[domain.ServiceID][]string
}

var _ Classifier = (*Engine)(nil)

// NewEngine creates a new policy engine with the given policy content and
// per-service retryable pattern table.
func NewEngine(ctx context.Context, policyContent string, patterns map[domain.ServiceID][]string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.retry_policy.retryable"),
		rego.Module("retry_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query, patterns: patterns}, nil
}

// IsRetryable evaluates the retry policy for one failure.
func (e *Engine) IsRetryable(ctx context.Context, service domain.ServiceID, statusCode int, message string) (bool, error) {
	patterns := e.patterns[service]
	if patterns == nil {
		patterns = []string{}
	}
	input := map[string]interface{}{
		"service":     string(service),
		"status_code": statusCode,
		"message":     strings.ToLower(message),
		"patterns":    patterns,
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	if b, ok := results[0].Expressions[0].Value.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
}

// DefaultPolicy is the default retry policy content. A failure is retryable
// when its status is a throttling or gateway status, or its lowercased
// message matches one of the service's patterns.
const DefaultPolicy = `
package retry_policy

default retryable = false

retryable_status := {429, 502, 503, 504}

retryable {
	retryable_status[input.status_code]
}

retryable {
	pattern := input.patterns[_]
	regex.match(pattern, input.message)
}
`

// PatternClassifier is an in-process Classifier over the same pattern table.
type PatternClassifier struct {
	patterns map[domain.ServiceID][]*regexp.Regexp
}

var _ Classifier = (*PatternClassifier)(nil)

// NewPatternClassifier compiles the pattern table.
func NewPatternClassifier(patterns map[domain.ServiceID][]string) (*PatternClassifier, error) {
	compiled := make(map[domain.ServiceID][]*regexp.Regexp, len(patterns))
	for service, list := range patterns {
		for _, p := range list {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q for %s: %w", p, service, err)
			}
			compiled[service] = append(compiled[service], re)
		}
	}
	return &PatternClassifier{patterns: compiled}, nil
}

// IsRetryable applies the same rules as DefaultPolicy.
func (c *PatternClassifier) IsRetryable(_ context.Context, service domain.ServiceID, statusCode int, message string) (bool, error) {
	switch statusCode {
	case 429, 502, 503, 504:
		return true, nil
	}
	lower := strings.ToLower(message)
	for _, re := range c.patterns[service] {
		if re.MatchString(lower) {
			return true, nil
		}
	}
	return false, nil
}
