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

// Report Planner (spec §4.2): lowers a Report into a LogicalPlan tree.
// Grounded on original_source/src/semantic/planner/report/mod.rs's
// multi-fact-CTE design (measure routing by owning fact, per-fact filter
// applicability via a safe-path check, FULL OUTER JOIN + COALESCE
// composition across cohorts) — expressed here as a LogicalPlan tree rather
// than CTEs, since spec.md's plan-tree shape has no CTE node.
package plan

import (
	"sort"

	"github.com/dolthub/semantic-sql/graph"
	"github.com/dolthub/semantic-sql/semerr"
	"github.com/dolthub/semantic-sql/semmodel"
)

// Builder lowers Reports into LogicalPlan trees against one semantic model
// and graph.
type Builder struct {
	model *semmodel.Model
	graph *graph.Graph
}

// NewBuilder returns a Builder bound to model and graph.
func NewBuilder(model *semmodel.Model, g *graph.Graph) *Builder {
	return &Builder{model: model, graph: g}
}

// cohort is one fact table's slice of a (possibly multi-fact) report: its
// measures, resolved group-by columns, and applicable filters.
type cohort struct {
	fact      string
	showItems []cohortShow
	groupBy   []ColRef
	// dateCol and hasDateCol carry forward which groupBy entry (if any) was
	// resolved from a DrillPathGroup -- the calendar/date column the ytd/mtd/
	// qtd window framing orders by (step 6). Resolved once per cohort instead
	// of re-derived from the column's name, since a PhysicalCalendar's grain
	// column can be named anything (e.g. "order_date").
	dateCol    ColRef
	hasDateCol bool
	predicates []semmodel.Expr
}

type cohortShow struct {
	item    semmodel.ShowItem
	measure *semmodel.Measure
}

// Build lowers report into a LogicalPlan. See spec §4.2 for the ordered
// steps this implements.
func (b *Builder) Build(report *semmodel.Report) (LogicalPlan, error) {
	if err := validateFrom(report); err != nil {
		return nil, err
	}

	cohorts, err := b.routeMeasures(report)
	if err != nil {
		return nil, err
	}

	for _, c := range cohorts {
		groupBy, dateCol, hasDateCol, err := b.resolveGroupBy(report.Group, c.fact)
		if err != nil {
			return nil, err
		}
		c.groupBy = groupBy
		c.dateCol = dateCol
		c.hasDateCol = hasDateCol
		c.predicates = b.routeFilters(report.Filters, c.fact)
	}

	var plans []LogicalPlan
	var facts []string
	for _, c := range cohorts {
		p, err := b.buildCohortPlan(c)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
		facts = append(facts, c.fact)
	}

	composed, err := composeCohorts(plans, cohorts)
	if err != nil {
		return nil, err
	}

	final := composed
	if len(report.Sort) > 0 {
		final = SortNode{Input: final, Items: sortItemsFrom(report.Sort)}
	}
	if report.Limit != nil {
		final = LimitNode{Input: final, N: *report.Limit}
	}

	return final, nil
}

// validateFrom enforces that a report names exactly one anchor fact table
// (spec §4.2 errors: empty from -> "table", from.len()>1 -> "multi-table
// query"; multi-fact reports are expressed via multiple facts owning
// separate show-entry measures, not via multiple from entries).
func validateFrom(report *semmodel.Report) error {
	switch len(report.From) {
	case 0:
		return semerr.UndefinedReference("table", report.Name, nil)
	case 1:
		return nil
	default:
		return semerr.UndefinedReference("multi-table query", report.Name, nil)
	}
}

// routeMeasures groups show items by their owning fact table (step 1),
// preserving first-appearance order of each fact.
func (b *Builder) routeMeasures(report *semmodel.Report) ([]*cohort, error) {
	index := map[string]*cohort{}
	var order []*cohort

	for _, item := range report.Show {
		measure, owner, ok := b.model.MeasureByName(item.Measure)
		if !ok {
			return nil, semerr.UndefinedReference("measure", item.Measure, b.allMeasureNames())
		}
		c, exists := index[owner]
		if !exists {
			c = &cohort{fact: owner}
			index[owner] = c
			order = append(order, c)
		}
		c.showItems = append(c.showItems, cohortShow{item: item, measure: measure})
	}

	return order, nil
}

func (b *Builder) allMeasureNames() []string {
	var names []string
	for _, table := range b.model.SortedTableNames() {
		block, ok := b.model.Measures[table]
		if !ok {
			continue
		}
		for name := range block.Measures {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// resolveGroupBy assembles the group_by ColRef list for one cohort (step 2),
// along with the calendar/date column a DrillPathGroup resolved to, if any --
// the provenance timeSuffixAggregate needs for window framing (step 6).
func (b *Builder) resolveGroupBy(items []semmodel.GroupItem, fact string) ([]ColRef, ColRef, bool, error) {
	refs := make([]ColRef, 0, len(items))
	var dateCol ColRef
	var hasDateCol bool
	for _, item := range items {
		ref, isCalendarCol, err := b.resolveGroupItem(item, fact)
		if err != nil {
			return nil, ColRef{}, false, err
		}
		refs = append(refs, ref)
		if isCalendarCol && !hasDateCol {
			dateCol = ref
			hasDateCol = true
		}
	}
	return refs, dateCol, hasDateCol, nil
}

// resolveGroupItem resolves one group-by item to its physical column. The
// second return flags whether the column came from a DrillPathGroup (a
// calendar/time-dimension drill path), as opposed to an InlineSlicerGroup --
// the only provenance the window-framing step needs, regardless of what the
// resolved column happens to be named.
func (b *Builder) resolveGroupItem(item semmodel.GroupItem, fact string) (ColRef, bool, error) {
	switch g := item.(type) {
	case semmodel.InlineSlicerGroup:
		ref, err := b.resolveSlicerColumn(fact, g.Slicer)
		return ref, false, err
	case semmodel.DrillPathGroup:
		ref, err := b.resolveDrillPathColumn(g)
		return ref, true, err
	default:
		return ColRef{}, false, semerr.InvalidPlan("unrecognized group item shape for fact %s", fact)
	}
}

// resolveSlicerColumn resolves an InlineSlicerGroup to its physical column,
// following ViaSlicer indirection through its Through foreign key.
func (b *Builder) resolveSlicerColumn(fact, slicerName string) (ColRef, error) {
	table, ok := b.model.Tables[fact]
	if !ok {
		return ColRef{}, semerr.UnknownEntity(fact, b.model.SortedTableNames())
	}

	slicer, ok := table.Slicers[slicerName]
	if !ok {
		return ColRef{}, semerr.UndefinedReference("slicer", slicerName, table.SortedSlicerNames())
	}

	switch sl := slicer.(type) {
	case semmodel.InlineSlicer:
		return ColRef{Entity: fact, Column: sl.Column}, nil
	case semmodel.ForeignKeySlicer:
		return ColRef{Entity: fact, Column: sl.KeyColumn}, nil
	case semmodel.ViaSlicer:
		through, ok := table.Slicers[sl.Through].(semmodel.ForeignKeySlicer)
		if !ok {
			return ColRef{}, semerr.UndefinedReference("foreign key slicer", sl.Through, table.SortedSlicerNames())
		}
		dim, ok := b.model.Dimensions[through.Dimension]
		if !ok {
			return ColRef{}, semerr.UndefinedReference("dimension", through.Dimension, b.model.SortedDimensionNames())
		}
		column, ok := dim.Attributes[sl.Attribute]
		if !ok {
			return ColRef{}, semerr.UndefinedReference("attribute", sl.Attribute, attributeNames(dim))
		}
		return ColRef{Entity: through.Dimension, Column: column}, nil
	case semmodel.CalculatedSlicer:
		return ColRef{Entity: fact, Column: sl.Name}, nil
	default:
		return ColRef{}, semerr.InvalidPlan("unrecognized slicer shape: %s", slicerName)
	}
}

func (b *Builder) resolveDrillPathColumn(g semmodel.DrillPathGroup) (ColRef, error) {
	cal, ok := b.model.Calendars[g.Calendar]
	if !ok {
		return ColRef{}, semerr.UndefinedReference("calendar", g.Calendar, b.model.SortedCalendarNames())
	}
	if !cal.SupportsGrain(g.Path, g.Level) {
		return ColRef{}, semerr.UndefinedReference("drill path level", g.Path+"."+string(g.Level), nil)
	}

	entity := cal.SourceEntityName()
	switch body := cal.Body.(type) {
	case semmodel.PhysicalCalendar:
		column, ok := body.GrainColumns[g.Level]
		if !ok {
			return ColRef{}, semerr.UndefinedReference("grain column", string(g.Level), nil)
		}
		return ColRef{Entity: entity, Column: column}, nil
	case semmodel.GeneratedCalendar:
		return ColRef{Entity: entity, Column: string(g.Level)}, nil
	default:
		return ColRef{}, semerr.InvalidPlan("unrecognized calendar body for %s", g.Calendar)
	}
}

func attributeNames(dim *semmodel.Dimension) []string {
	names := make([]string, 0, len(dim.Attributes))
	for n := range dim.Attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// routeFilters attaches every filter whose referenced entities are all
// safely reachable from fact (step 3); a filter referencing an entity with
// no safe path is silently omitted for this cohort.
func (b *Builder) routeFilters(filters []semmodel.Filter, fact string) []semmodel.Expr {
	var applicable []semmodel.Expr
	for _, f := range filters {
		if b.filterAppliesTo(f.Expr, fact) {
			applicable = append(applicable, f.Expr)
		}
	}
	return applicable
}

func (b *Builder) filterAppliesTo(expr semmodel.Expr, fact string) bool {
	for _, entity := range semmodel.ReferencedEntities(expr) {
		if entity == fact {
			continue
		}
		path, err := b.graph.FindPath(fact, entity)
		if err != nil {
			return false
		}
		if !graph.IsSafePath(path) {
			return false
		}
	}
	return true
}

// buildCohortPlan assembles one cohort's plan (step 4): Scan -> join tree ->
// Filter -> Aggregate -> Project.
func (b *Builder) buildCohortPlan(c *cohort) (LogicalPlan, error) {
	targets := c.referencedEntities()

	var tree graph.JoinPath
	if len(targets) > 0 {
		t, err := b.graph.FindJoinTree(c.fact, targets)
		if err != nil {
			return nil, err
		}
		tree = t
	}

	built := buildJoinTree(c.fact, tree)

	var node LogicalPlan = built
	if len(c.predicates) > 0 {
		node = FilterNode{Input: node, Predicates: c.predicates}
	}

	aggregates := make([]AggExpr, 0, len(c.showItems))
	for _, s := range c.showItems {
		aggregates = append(aggregates, timeSuffixAggregate(s, c))
	}

	node = AggregateNode{Input: node, GroupBy: c.groupBy, Aggregates: aggregates}
	node = ProjectNode{Input: node, Columns: projectColumns(c)}

	return node, nil
}

// referencedEntities is the union of entities (excluding the fact itself)
// that this cohort's group-by and filters reference, used to compute the
// join tree the cohort's plan needs.
func (c *cohort) referencedEntities() []string {
	seen := map[string]bool{}
	for _, g := range c.groupBy {
		if g.Entity != "" && g.Entity != c.fact {
			seen[g.Entity] = true
		}
	}
	for _, p := range c.predicates {
		for _, e := range semmodel.ReferencedEntities(p) {
			if e != c.fact {
				seen[e] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// buildJoinTree assembles Scan(fact) joined against every edge of tree, one
// JoinNode per edge, in an order that always has one endpoint already built.
func buildJoinTree(fact string, tree graph.JoinPath) LogicalPlan {
	var root LogicalPlan = ScanNode{Entity: fact}
	built := map[string]bool{fact: true}

	remaining := append([]graph.JoinEdge(nil), tree.Edges...)
	for len(remaining) > 0 {
		progressed := false
		for i, e := range remaining {
			var newEntity string
			switch {
			case built[e.FromEntity] && !built[e.ToEntity]:
				newEntity = e.ToEntity
			case built[e.ToEntity] && !built[e.FromEntity]:
				newEntity = e.FromEntity
			default:
				continue
			}

			root = JoinNode{
				Left:        root,
				Right:       ScanNode{Entity: newEntity},
				JoinType:    JoinInner,
				On:          []JoinCondition{{Left: ColRef{Entity: e.FromEntity, Column: e.FromColumn}, Right: ColRef{Entity: e.ToEntity, Column: e.ToColumn}}},
				Cardinality: string(e.Cardinality),
			}
			built[newEntity] = true
			remaining = append(remaining[:i], remaining[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}

	return root
}

// timeSuffixAggregate realizes one show item's aggregate, adding the
// windowed-running-aggregate framing for ytd/mtd/qtd suffixes (step 6): the
// window partitions by every group-by column except the date dimension's,
// ordered by the date column. c.dateCol/c.hasDateCol carry that provenance
// forward from resolveGroupBy, resolved once against the DrillPathGroup that
// produced it rather than guessed from the column's name -- a
// PhysicalCalendar's grain column can be named anything.
func timeSuffixAggregate(s cohortShow, c *cohort) AggExpr {
	alias := s.item.Measure
	if s.item.TimeSuffix != "" {
		alias = s.item.Measure + "_" + s.item.TimeSuffix
	}

	agg := AggExpr{Name: alias, Expr: s.measure.Expr, TimeSuffix: s.item.TimeSuffix}
	if s.item.TimeSuffix == "" {
		return agg
	}

	var partition []ColRef
	for _, g := range c.groupBy {
		if c.hasDateCol && g == c.dateCol {
			continue
		}
		partition = append(partition, g)
	}
	agg.PartitionBy = partition
	agg.OrderBy = c.dateCol
	return agg
}

func projectColumns(c *cohort) []ProjectedColumn {
	cols := make([]ProjectedColumn, 0, len(c.groupBy)+len(c.showItems))
	for _, g := range c.groupBy {
		cols = append(cols, ProjectedColumn{Alias: g.Column, Expr: semmodel.ColumnExpr{Entity: g.Entity, Column: g.Column}})
	}
	for _, s := range c.showItems {
		alias := s.item.Measure
		if s.item.TimeSuffix != "" {
			alias = s.item.Measure + "_" + s.item.TimeSuffix
		}
		cols = append(cols, ProjectedColumn{Alias: alias, Expr: semmodel.ColumnExpr{Entity: c.fact, Column: alias}})
	}
	return cols
}

func sortItemsFrom(items []semmodel.SortItem) []SortItem {
	out := make([]SortItem, 0, len(items))
	for _, s := range items {
		out = append(out, SortItem{Expr: s.Expr, Desc: s.Desc})
	}
	return out
}

// composeCohorts implements step 5: a single cohort needs no outer
// composition; multiple cohorts are folded pairwise with FULL OUTER JOIN on
// their group-by columns, each join's output column list COALESCing the
// corresponding pair.
func composeCohorts(plans []LogicalPlan, cohorts []*cohort) (LogicalPlan, error) {
	if len(plans) == 0 {
		return nil, semerr.InvalidPlan("report has no cohorts (empty show list)")
	}
	if len(plans) == 1 {
		return plans[0], nil
	}

	for i := 1; i < len(cohorts); i++ {
		if err := checkGroupByShapesMatch(cohorts[0], cohorts[i]); err != nil {
			return nil, err
		}
	}

	acc := plans[0]
	accGroupBy := cohorts[0].groupBy

	for i := 1; i < len(plans); i++ {
		on := make([]JoinCondition, 0, len(accGroupBy))
		for j, g := range accGroupBy {
			on = append(on, JoinCondition{Left: g, Right: cohorts[i].groupBy[j]})
		}
		acc = JoinNode{Left: acc, Right: plans[i], JoinType: JoinFull, On: on}
	}

	coalesced := make([]ProjectedColumn, 0, len(accGroupBy))
	for j, g := range accGroupBy {
		other := cohorts[len(cohorts)-1].groupBy[j]
		coalesced = append(coalesced, ProjectedColumn{
			Alias: g.Column,
			Expr: semmodel.ScalarCallExpr{
				Func: "COALESCE",
				Args: []semmodel.Expr{
					semmodel.ColumnExpr{Entity: g.Entity, Column: g.Column},
					semmodel.ColumnExpr{Entity: other.Entity, Column: other.Column},
				},
			},
		})
	}
	for _, c := range cohorts {
		for _, s := range c.showItems {
			alias := s.item.Measure
			if s.item.TimeSuffix != "" {
				alias = s.item.Measure + "_" + s.item.TimeSuffix
			}
			coalesced = append(coalesced, ProjectedColumn{Alias: alias, Expr: semmodel.ColumnExpr{Entity: c.fact, Column: alias}})
		}
	}

	return ProjectNode{Input: acc, Columns: coalesced}, nil
}

// checkGroupByShapesMatch implements Open Question #1's decision: composing
// cohorts via FULL OUTER JOIN requires their group-by column lists to have
// identical length and identical physical column names, in order.
func checkGroupByShapesMatch(a, b *cohort) error {
	if len(a.groupBy) != len(b.groupBy) {
		return semerr.UndefinedReference("group by column", b.fact, nil)
	}
	for i, g := range a.groupBy {
		if g.Column != b.groupBy[i].Column {
			return semerr.UndefinedReference("group by column", b.groupBy[i].Column, nil)
		}
	}
	return nil
}
