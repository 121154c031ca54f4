package planner

import (
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
)

// planRules is the datalog program that checks plan structure. The Go side
// loads step/dep facts, evaluates to fixpoint, and reads back the derived
// predicates: dangling (edge to a step that does not exist), reach
// (transitive dependency), in_cycle (step that depends on itself).
const planRules = `
Decl step(Id).
Decl dep(Id, Dep).
Decl dangling(Id, Dep).
Decl reach(From, To).
Decl in_cycle(Id).

dangling(Id, Dep) :- dep(Id, Dep), !step(Dep).
reach(A, B) :- dep(A, B).
reach(A, C) :- reach(A, B), dep(B, C).
in_cycle(Id) :- reach(Id, Id).
`

type graphEdge struct {
	From, To int
}

// graphFacts holds the derived predicates of one evaluation.
type graphFacts struct {
	dangling []graphEdge
	reach    map[graphEdge]bool
	inCycle  map[int]bool
}

// analyzeGraph evaluates planRules over the plan's dependency graph.
func analyzeGraph(p *Plan) (*graphFacts, error) {
	unit, err := parse.Unit(strings.NewReader(planRules))
	if err != nil {
		return nil, fmt.Errorf("parse plan rules: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze plan rules: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, s := range p.Steps {
		store.Add(ast.NewAtom("step", ast.Number(int64(s.ID))))
		for _, d := range s.DependsOn {
			store.Add(ast.NewAtom("dep", ast.Number(int64(s.ID)), ast.Number(int64(d))))
		}
	}
	if _, err := engine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("evaluate plan rules: %w", err)
	}

	g := &graphFacts{reach: make(map[graphEdge]bool), inCycle: make(map[int]bool)}
	for _, args := range collect(info, store, "dangling") {
		g.dangling = append(g.dangling, graphEdge{From: int(args[0]), To: int(args[1])})
	}
	for _, args := range collect(info, store, "reach") {
		g.reach[graphEdge{From: int(args[0]), To: int(args[1])}] = true
	}
	for _, args := range collect(info, store, "in_cycle") {
		g.inCycle[int(args[0])] = true
	}
	return g, nil
}

// collect reads every fact of a predicate back out of the store as numeric
// argument tuples.
func collect(info *analysis.ProgramInfo, store factstore.FactStore, predicate string) [][]int64 {
	var out [][]int64
	for sym := range info.Decls {
		if sym.Symbol != predicate {
			continue
		}
		store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
			args := make([]int64, 0, len(a.Args))
			for _, term := range a.Args {
				c, ok := term.(ast.Constant)
				if !ok || c.Type != ast.NumberType {
					return nil
				}
				args = append(args, c.NumValue)
			}
			out = append(out, args)
			return nil
		})
		break
	}
	return out
}

// repairStructure mutates the plan until its dependency graph is clean:
// dangling edges are dropped, then cycles are broken one edge per round
// until none derive. Returns a description of every repair applied.
func repairStructure(p *Plan) ([]string, error) {
	var repairs []string

	g, err := analyzeGraph(p)
	if err != nil {
		return repairs, err
	}

	for _, e := range g.dangling {
		removeDependency(p, e)
		msg := fmt.Sprintf("dropped dependency %d -> %d: no such step", e.From, e.To)
		logging.Planner("plan repair: %s", msg)
		repairs = append(repairs, msg)
	}
	if len(g.dangling) > 0 {
		if g, err = analyzeGraph(p); err != nil {
			return repairs, err
		}
	}

	// Each round removes exactly one edge that lies on a cycle, so the loop
	// is bounded by the edge count.
	for rounds := edgeCount(p); len(g.inCycle) > 0 && rounds >= 0; rounds-- {
		e, ok := firstCycleEdge(p, g)
		if !ok {
			break
		}
		removeDependency(p, e)
		msg := fmt.Sprintf("broke dependency cycle by dropping %d -> %d", e.From, e.To)
		logging.Planner("plan repair: %s", msg)
		repairs = append(repairs, msg)

		if g, err = analyzeGraph(p); err != nil {
			return repairs, err
		}
	}
	return repairs, nil
}

// firstCycleEdge returns the first dependency edge, in plan order, that lies
// on a cycle: either a self-dependency or an edge whose target reaches back
// to its source.
func firstCycleEdge(p *Plan, g *graphFacts) (graphEdge, bool) {
	for _, s := range p.Steps {
		if !g.inCycle[s.ID] {
			continue
		}
		for _, d := range s.DependsOn {
			if d == s.ID || g.reach[graphEdge{From: d, To: s.ID}] {
				return graphEdge{From: s.ID, To: d}, true
			}
		}
	}
	return graphEdge{}, false
}

func removeDependency(p *Plan, e graphEdge) {
	s := p.Step(e.From)
	if s == nil {
		return
	}
	kept := s.DependsOn[:0]
	for _, d := range s.DependsOn {
		if d != e.To {
			kept = append(kept, d)
		}
	}
	s.DependsOn = kept
}

func edgeCount(p *Plan) int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.DependsOn)
	}
	return n
}
