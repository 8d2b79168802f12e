package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario loads a CUE definition file, runs one named query through the
// inverter, and asserts on the outcome: whether inversion succeeded, which
// failure code it reported, and which tuples the generator produced.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions is the path to the CUE definition file, resolved
	// relative to the scenario file location.
	Definitions string `yaml:"definitions"`

	// Query names the query in the definition file to invert.
	// May be omitted when the file defines exactly one query.
	Query string `yaml:"query,omitempty"`

	// Bound maps variable names to known values available before
	// inversion. Values follow the same scalar rules as CUE data rows.
	Bound map[string]interface{} `yaml:"bound,omitempty"`

	// MaxDepth overrides the inverter's recursion depth bound when > 0.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Expect specifies the expected outcome.
	Expect ExpectClause `yaml:"expect"`
}

// ExpectClause specifies the expected inversion outcome.
type ExpectClause struct {
	// Inverted is true when inversion must produce a generator, false
	// when the engine must refuse.
	Inverted bool `yaml:"inverted"`

	// FailureCode is the expected failure code when Inverted is false
	// (e.g. "UNBOUNDED_BASE"). Empty means any failure is acceptable.
	FailureCode string `yaml:"failure_code,omitempty"`

	// Tuples are the expected materialized rows, order-insensitive.
	// Each row is a scalar for a single goal variable or a list
	// matching the goal arity.
	Tuples []interface{} `yaml:"tuples,omitempty"`

	// CheckFallback additionally enumerates the predicate exhaustively
	// over the domains and requires the same tuple set.
	CheckFallback bool `yaml:"check_fallback,omitempty"`

	// Domains supplies the per-variable candidate values for the
	// fallback enumeration. When empty, the universe of scalars found
	// in the relation data is used for every goal variable.
	Domains map[string][]interface{} `yaml:"domains,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// The definitions path is resolved relative to the scenario file's
// directory. Returns an error if the file is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if !filepath.IsAbs(scenario.Definitions) && scenario.Definitions != "" {
		scenario.Definitions = filepath.Join(filepath.Dir(path), scenario.Definitions)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Definitions == "" {
		return fmt.Errorf("definitions is required")
	}
	if _, err := os.Stat(s.Definitions); os.IsNotExist(err) {
		return fmt.Errorf("definition file not found: %s", s.Definitions)
	}

	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}

	if !s.Expect.Inverted {
		if len(s.Expect.Tuples) > 0 {
			return fmt.Errorf("expect.tuples requires expect.inverted: true")
		}
		if s.Expect.CheckFallback {
			return fmt.Errorf("expect.check_fallback requires expect.inverted: true")
		}
	}
	if s.Expect.FailureCode != "" && s.Expect.Inverted {
		return fmt.Errorf("expect.failure_code requires expect.inverted: false")
	}

	return nil
}
