// Package replay runs scripted operation sequences against a fixed-capacity
// map and checks the tree after every step.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// Sentinel errors for scenario loading and replay.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrExpectation     = errors.New("expectation not met")
)

// Scenario is a replayable script: the container shape followed by steps.
type Scenario struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Pool     string `yaml:"pool"`
	Layout   string `yaml:"layout"`
	Policy   string `yaml:"policy"`
	Steps    []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Insert     []int64 `yaml:"insert,omitempty"`
	Put        []Pair  `yaml:"put,omitempty"`
	Delete     []int64 `yaml:"delete,omitempty"`
	Swap       []int64 `yaml:"swap,omitempty"`
	EraseRange *Range  `yaml:"erase_range,omitempty"`
	Clear      bool    `yaml:"clear,omitempty"`
	Expect     *Expect `yaml:"expect,omitempty"`
}

// Pair is a key with the value to store under it.
type Pair struct {
	Key   int64 `yaml:"key"`
	Value int64 `yaml:"value"`
}

// Range is a half-open key range [From, To). A missing To runs to the end.
type Range struct {
	From int64  `yaml:"from"`
	To   *int64 `yaml:"to,omitempty"`
}

// Expect lists assertions on the current state. Unset fields are not checked.
type Expect struct {
	Size       *int    `yaml:"size,omitempty"`
	Height     *int    `yaml:"height,omitempty"`
	Root       *int64  `yaml:"root,omitempty"`
	Keys       []int64 `yaml:"keys,omitempty"`
	Violations *int    `yaml:"violations,omitempty"`
}

// Action names the single action a step carries, or "" when it has none.
func (s *Step) Action() string {
	var names []string

	if len(s.Insert) > 0 {
		names = append(names, "insert")
	}

	if len(s.Put) > 0 {
		names = append(names, "put")
	}

	if len(s.Delete) > 0 {
		names = append(names, "delete")
	}

	if s.Swap != nil {
		names = append(names, "swap")
	}

	if s.EraseRange != nil {
		names = append(names, "erase_range")
	}

	if s.Clear {
		names = append(names, "clear")
	}

	if s.Expect != nil {
		names = append(names, "expect")
	}

	if len(names) != 1 {
		return ""
	}

	return names[0]
}

// Parse decodes a YAML scenario and validates it. Unknown fields are errors.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario

	err := dec.Decode(&sc)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidScenario, err)
	}

	err = sc.Validate()
	if err != nil {
		return nil, err
	}

	return &sc, nil
}

// Load reads and parses the scenario at path.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Validate checks the container shape and that every step has one action.
func (sc *Scenario) Validate() error {
	if sc.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidScenario, sc.Capacity)
	}

	if _, err := pool.ParseKind(sc.Pool); sc.Pool != "" && err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if _, err := rbtree.ParseLayout(sc.Layout); sc.Layout != "" && err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if _, err := check.ByName(sc.Policy, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	for idx := range sc.Steps {
		step := &sc.Steps[idx]

		switch step.Action() {
		case "":
			return fmt.Errorf("%w: step %d must carry exactly one action", ErrInvalidScenario, idx+1)
		case "swap":
			if len(step.Swap) != 2 {
				return fmt.Errorf("%w: step %d: swap takes two keys, got %d", ErrInvalidScenario, idx+1, len(step.Swap))
			}
		}
	}

	return nil
}
