package eval

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viperML/miq/internal/miqerr"
	"github.com/viperML/miq/internal/unit"
)

// Evaluator implements spec.md §4.1's evaluate operation: load a source,
// invoke the scripting host, select the named entity, and recursively
// materialize every transitively reachable Unit to the eval directory.
type Evaluator struct {
	Root string
	Host Host
}

// NewEvaluator returns an Evaluator backed by the yaegi scripting host.
func NewEvaluator(root string) *Evaluator {
	return &Evaluator{Root: root, Host: NewYaegiHost(root)}
}

// Evaluate resolves ref to a Result, writing any newly-evaluated units (and
// their full dependency closure) to the eval directory. Writing an
// unchanged record is a byte-for-byte no-op.
func (e *Evaluator) Evaluate(ref UnitRef) (unit.Result, error) {
	if ref.Result != "" {
		return e.evaluateSerialized(ref.Result)
	}
	return e.evaluateSource(ref.Source, ref.Selector)
}

func (e *Evaluator) evaluateSerialized(result unit.Result) (unit.Result, error) {
	path := result.EvalPath(e.Root)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", miqerr.Wrap(miqerr.EvalSchema, err, fmt.Sprintf("reading already-evaluated unit %s", path))
	}
	if _, err := unit.Unmarshal(data); err != nil {
		return "", err
	}
	return result, nil
}

func (e *Evaluator) evaluateSource(sourcePath, selector string) (unit.Result, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", miqerr.Wrap(miqerr.EvalSchema, err, fmt.Sprintf("reading unit source %s", sourcePath))
	}

	root, registry, names, err := e.Host.Select(string(source), selector)
	if err != nil {
		if suggestion := suggestSelector(selector, names); suggestion != "" && suggestion != selector {
			return "", miqerr.New(miqerr.EvalSchema, fmt.Sprintf("selector %q not found; did you mean %q?", selector, suggestion))
		}
		return "", err
	}

	if err := e.writeClosure(root, registry); err != nil {
		return "", err
	}
	return root.ID(), nil
}

// writeClosure writes root and every unit transitively reachable from it
// (via Deps, resolved against registry) to the eval directory.
func (e *Evaluator) writeClosure(root unit.Unit, registry map[unit.Result]unit.Unit) error {
	visited := make(map[unit.Result]bool)

	var visit func(u unit.Unit) error
	visit = func(u unit.Unit) error {
		if visited[u.ID()] {
			return nil
		}
		visited[u.ID()] = true

		if err := e.writeUnit(u); err != nil {
			return err
		}

		for _, dep := range u.Deps() {
			child, ok := registry[dep]
			if !ok {
				return miqerr.New(miqerr.EvalSchema, fmt.Sprintf("unit %s depends on %s, which the scripting host never constructed", u.ID(), dep))
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}

	return visit(root)
}

func (e *Evaluator) writeUnit(u unit.Unit) error {
	u.Canonicalize()
	data, err := unit.Marshal(u)
	if err != nil {
		return err
	}

	path := u.ID().EvalPath(e.Root)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("creating eval directory for %s", u.ID()))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return miqerr.Wrap(miqerr.Permanent, err, fmt.Sprintf("writing eval record for %s", u.ID()))
	}
	return nil
}
