package manifest

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lakebench/lakebench/internal/assertions"
)

//go:embed manifests/*.yaml
var defaultManifests embed.FS

// Embedded default manifest names.
const (
	DefaultNativeManifest = "manifests/p0-native.yaml"
	DefaultPythonManifest = "manifests/p0-python.yaml"
)

// RunnerMode selects which engines execute the plan.
type RunnerMode string

const (
	RunnerNative RunnerMode = "native"
	RunnerPython RunnerMode = "python"
	RunnerAll    RunnerMode = "all"
)

// ParseRunnerMode validates a runner flag value.
func ParseRunnerMode(value string) (RunnerMode, error) {
	switch RunnerMode(value) {
	case RunnerNative, RunnerPython, RunnerAll:
		return RunnerMode(value), nil
	default:
		return "", fmt.Errorf("unknown runner %q (expected one of: native, python, all)", value)
	}
}

// PlannedCase is one case selected for execution, with its assertions
// already converted.
type PlannedCase struct {
	ID         string
	Target     string
	Runner     string
	Assertions []assertions.Assertion
}

// Planner builds the executable case list out of the native and python
// manifests. Empty paths fall back to the embedded defaults.
type Planner struct {
	NativeManifestPath string
	PythonManifestPath string

	log *slog.Logger
}

// NewPlanner returns a planner using the embedded default manifests unless
// overridden. A nil logger discards output.
func NewPlanner(log *slog.Logger) *Planner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Planner{log: log}
}

// Plan selects the enabled cases matching target and runner, in manifest
// order with the native manifest first, then applies the optional substring
// case filter. An empty plan and a duplicate case id are both fatal.
func (p *Planner) Plan(target string, runner RunnerMode, caseFilter string) ([]PlannedCase, error) {
	if err := validateRunnerTarget(runner, target); err != nil {
		return nil, err
	}

	var planned []PlannedCase
	if runner == RunnerNative || runner == RunnerAll {
		cases, err := p.appendCases(p.NativeManifestPath, DefaultNativeManifest, target, "native")
		if err != nil {
			return nil, err
		}
		planned = append(planned, cases...)
	}
	if runner == RunnerPython || runner == RunnerAll {
		cases, err := p.appendCases(p.PythonManifestPath, DefaultPythonManifest, target, "python")
		if err != nil {
			return nil, err
		}
		planned = append(planned, cases...)
	}

	if filter := strings.TrimSpace(caseFilter); filter != "" {
		kept := planned[:0]
		for _, c := range planned {
			if strings.Contains(c.ID, filter) {
				kept = append(kept, c)
			}
		}
		planned = kept
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("case filter matched no cases for target='%s' and runner='%s'", target, runner)
	}

	seen := make(map[string]struct{}, len(planned))
	for _, c := range planned {
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("planned case list contains duplicate case id '%s'", c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	p.log.Debug("planned cases", "target", target, "runner", runner, "count", len(planned))
	return planned, nil
}

func (p *Planner) appendCases(path, embeddedName, target, runnerName string) ([]PlannedCase, error) {
	var (
		m   *Manifest
		err error
	)
	if path != "" {
		m, err = Load(path)
	} else {
		var data []byte
		data, err = defaultManifests.ReadFile(embeddedName)
		if err == nil {
			m, err = Parse(data, embeddedName)
		}
	}
	if err != nil {
		name := path
		if name == "" {
			name = embeddedName
		}
		return nil, fmt.Errorf("failed to load required manifest '%s': %w", name, err)
	}

	var out []PlannedCase
	for _, c := range m.Cases {
		if !c.IsEnabled() {
			continue
		}
		if c.EffectiveRunner() != runnerName {
			continue
		}
		if target != "all" && c.Target != target {
			continue
		}
		planned := PlannedCase{ID: c.ID, Target: c.Target, Runner: runnerName}
		for _, a := range c.Assertions {
			converted, convErr := a.ToAssertion()
			if convErr != nil {
				return nil, convErr
			}
			planned.Assertions = append(planned.Assertions, converted)
		}
		out = append(out, planned)
	}
	return out, nil
}

func validateRunnerTarget(runner RunnerMode, target string) error {
	switch {
	case runner == RunnerNative && target == "interop_py":
		return fmt.Errorf("runner=native cannot run target=interop_py")
	case runner == RunnerPython && target != "all" && target != "interop_py":
		return fmt.Errorf("runner=python can only run target=interop_py or target=all (resolved target: %s)", target)
	}
	return nil
}
