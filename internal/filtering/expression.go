package filtering

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/stveit/argus/internal/models"
)

// programs caches compiled expressions keyed by source text. Filters are
// immutable once validated, so the cache never needs invalidation.
var programs sync.Map // string -> *vm.Program

// compileExpression compiles an expr-lang predicate with type checking
// against the incident environment and caches the program.
func compileExpression(expression string) (*vm.Program, error) {
	if cached, ok := programs.Load(expression); ok {
		return cached.(*vm.Program), nil
	}

	program, err := expr.Compile(expression,
		expr.Env(sampleEnv()),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}

	programs.Store(expression, program)
	return program, nil
}

// evalExpression evaluates a previously validated expression against an
// incident. Evaluation errors count as no match.
func evalExpression(expression string, incident *models.Incident) bool {
	program, err := compileExpression(expression)
	if err != nil {
		return false
	}

	result, err := expr.Run(program, incidentEnv(incident))
	if err != nil {
		return false
	}

	matched, ok := result.(bool)
	return ok && matched
}

// sampleEnv is the environment shape used for compile-time type checking.
func sampleEnv() map[string]any {
	return map[string]any{
		"description": "",
		"source":      "",
		"tags":        map[string]string{},
	}
}

// incidentEnv builds the evaluation environment from an incident.
func incidentEnv(incident *models.Incident) map[string]any {
	tags := incident.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return map[string]any{
		"description": incident.Description,
		"source":      incident.SourceSystemID,
		"tags":        tags,
	}
}
