// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine orchestrates the full compile pipeline -- semantic model
// and graph metadata in, a dialect-neutral SQL AST out -- wiring together
// graph, plan, physical, cost, and sqlast the way engine.go once wired a
// MySQL session's analyzer, execution, and row iteration stages.
package engine

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/semantic-sql/cost"
	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/physical"
	"github.com/dolthub/semantic-sql/plan"
	"github.com/dolthub/semantic-sql/semerr"
	"github.com/dolthub/semantic-sql/semmodel"
	"github.com/dolthub/semantic-sql/sqlast"
)

// Config holds the per-Engine settings that do not vary across
// compilations: the logger sink and the tracer used to wrap each pipeline
// stage. A zero Config is valid and uses logrus's standard logger and the
// opentracing global tracer (typically a no-op until one is registered).
type Config struct {
	Logger *logrus.Logger
	Tracer opentracing.Tracer
}

// Engine compiles reports against one semantic model and one set of graph
// metadata. Both are fixed at construction: a new Engine is cheap to build
// per model version, and nothing about compilation mutates either input.
type Engine struct {
	model *semmodel.Model
	g     *graph.Graph
	log   *logrus.Entry
	tr    opentracing.Tracer
}

// New builds an Engine over model, with stats supplying the row counts and
// column metadata the semantic graph and cost estimator need (spec §6.1).
// It fails if the graph-level invariants in graph.New are violated.
func New(model *semmodel.Model, stats graph.Stats, cfg Config) (*Engine, error) {
	g, err := graph.New(model, stats)
	if err != nil {
		return nil, errors.Wrap(err, "engine: building semantic graph")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	return &Engine{
		model: model,
		g:     g,
		log:   logger.WithField("component", "engine"),
		tr:    tracer,
	}, nil
}

// Result is the outcome of one successful Compile call.
type Result struct {
	// SessionID identifies this compilation, for correlating logs, traces,
	// and plan-dump output (SPEC_FULL.md §3: satori/go.uuid).
	SessionID string
	// Physical is the chosen physical plan.
	Physical cost.PhysicalPlan
	// Costed is Physical annotated with its cost estimate at every node,
	// for the CLI's `--output verbose` plan-dump mode.
	Costed CostedNode
	// Query is the dialect-neutral SQL AST (spec §6.2's primary output).
	Query *sqlast.Query
}

// CostedNode pairs one physical-plan node with its CostEstimate and the
// same annotation recursively applied to its children. A plain
// map[cost.PhysicalPlan]cost.CostEstimate would do this more tersely, but
// several PhysicalPlan variants (FilterNode.Predicates,
// HashAggregateNode.Aggregates, ...) carry slice fields, making their
// concrete types unhashable -- using them as map keys panics at the first
// insert. A tree sidesteps the problem entirely.
type CostedNode struct {
	Plan     cost.PhysicalPlan
	Cost     cost.CostEstimate
	Children []CostedNode
}

// Compile runs reportName through the full pipeline: logical planning
// (plan.Builder), physical planning and join ordering (physical.Planner,
// backed by memo and cost), and SQL-AST emission (sqlast.Emit). Each stage
// is one opentracing span and two structured Debug log lines (entering,
// then complete or failed); the report name, final cost and row estimate
// are logged at Info. Compilation is a single
// atomic step: any stage failing aborts with no partial SQL, matching
// spec §7's "no partial success" rule.
func (e *Engine) Compile(ctx context.Context, reportName string) (*Result, error) {
	sessionID := uuid.NewV4().String()
	log := e.log.WithFields(logrus.Fields{"session_id": sessionID, "report": reportName})

	span := e.tr.StartSpan("engine.Compile")
	span.SetTag("report", reportName)
	span.SetTag("session_id", sessionID)
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	report, ok := e.model.Reports[reportName]
	if !ok {
		return nil, errors.Wrapf(unknownReport(reportName, e.model), "engine: compiling %q", reportName)
	}

	logical, err := e.stage(ctx, log, "logical_plan", func() (interface{}, error) {
		return plan.NewBuilder(e.model, e.g).Build(report)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "engine: planning report %q", reportName)
	}

	physicalPlan, err := e.stage(ctx, log, "physical_plan", func() (interface{}, error) {
		return physical.New(e.g).Plan(logical.(plan.LogicalPlan))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "engine: choosing physical plan for %q", reportName)
	}

	query, err := e.stage(ctx, log, "sql_ast", func() (interface{}, error) {
		return sqlast.Emit(physicalPlan.(cost.PhysicalPlan))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "engine: emitting SQL AST for %q", reportName)
	}

	estimator := cost.NewEstimator(e.g)
	costed := annotateCosts(estimator, physicalPlan.(cost.PhysicalPlan))

	log.WithFields(logrus.Fields{
		"total_cost": costed.Cost.Total(),
		"rows_out":   costed.Cost.RowsOut,
	}).Info("compiled report")

	return &Result{
		SessionID: sessionID,
		Physical:  physicalPlan.(cost.PhysicalPlan),
		Costed:    costed,
		Query:     query.(*sqlast.Query),
	}, nil
}

// stage wraps one pipeline step in its own child span and Debug log lines,
// the same per-stage instrumentation spec.md's ambient-stack expansion
// calls for (SPEC_FULL.md §2: "one structured line per compilation
// stage... at Debug").
func (e *Engine) stage(ctx context.Context, log *logrus.Entry, name string, fn func() (interface{}, error)) (interface{}, error) {
	span, _ := opentracing.StartSpanFromContextWithTracer(ctx, e.tr, "engine."+name)
	defer span.Finish()

	log.WithField("stage", name).Debug("entering compile stage")
	result, err := fn()
	if err != nil {
		span.SetTag("error", true)
		log.WithFields(logrus.Fields{"stage": name, "error": err}).Debug("compile stage failed")
		return nil, err
	}
	log.WithField("stage", name).Debug("compile stage complete")
	return result, nil
}

// annotateCosts walks the physical plan tree and estimates every node, not
// just the root, for the CLI's plan-dump mode (SPEC_FULL.md §4's "render
// the chosen PhysicalPlan tree annotated with its CostEstimate per node").
func annotateCosts(e *cost.Estimator, node cost.PhysicalPlan) CostedNode {
	costed := CostedNode{Plan: node, Cost: e.Estimate(node)}

	switch n := node.(type) {
	case cost.FilterNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Input)}
	case cost.HashJoinNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Left), annotateCosts(e, n.Right)}
	case cost.NestedLoopJoinNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Left), annotateCosts(e, n.Right)}
	case cost.HashAggregateNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Input)}
	case cost.SortNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Input)}
	case cost.LimitNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Input)}
	case cost.ProjectNode:
		costed.Children = []CostedNode{annotateCosts(e, n.Input)}
	}
	return costed
}

// unknownReport builds semerr.UnknownEntity over the model's report names,
// so a bad --report flag gets the same "maybe you mean X?" treatment as an
// unknown fact or dimension name.
func unknownReport(name string, model *semmodel.Model) error {
	names := make([]string, 0, len(model.Reports))
	for n := range model.Reports {
		names = append(names, n)
	}
	return semerr.UnknownEntity(name, names)
}
