// Package catalog holds the ordered table of workflow steps a shipment moves through.
package catalog

import (
	"fmt"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// Catalog is immutable once built. Construct it with New, Load or Default and
// hand the same instance to everything that needs step lookups.
type Catalog struct {
	steps    []domain.StepDefinition
	byCode   map[string]int
	path     map[string]int // position along the chain that starts at First
	terminal string
}

func New(defs []domain.StepDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, domain.ConfigurationError("step catalog is empty")
	}

	c := &Catalog{
		steps:  make([]domain.StepDefinition, len(defs)),
		byCode: make(map[string]int, len(defs)),
		path:   make(map[string]int, len(defs)),
	}
	copy(c.steps, defs)

	for i, s := range c.steps {
		if s.Code == "" {
			return nil, domain.ConfigurationError("step at position %d has no code", i)
		}
		if _, dup := c.byCode[s.Code]; dup {
			return nil, domain.ConfigurationError("duplicate step code %q", s.Code)
		}
		c.byCode[s.Code] = i
		if s.IsTerminal() {
			if c.terminal != "" {
				return nil, domain.ConfigurationError("multiple terminal steps: %q and %q", c.terminal, s.Code)
			}
			c.terminal = s.Code
		}
	}
	if c.terminal == "" {
		return nil, domain.ConfigurationError("step catalog has no terminal step")
	}

	for _, s := range c.steps {
		if !s.IsTerminal() {
			if _, ok := c.byCode[s.NextCode]; !ok {
				return nil, domain.ConfigurationError("step %q points to unknown step %q", s.Code, s.NextCode)
			}
		}
	}

	// Every walk must hit the terminal within len(steps) hops, otherwise there is a cycle.
	for _, s := range c.steps {
		code := s.Code
		for hops := 0; code != c.terminal; hops++ {
			if hops >= len(c.steps) {
				return nil, domain.ConfigurationError("step %q is part of a cycle", s.Code)
			}
			code = c.steps[c.byCode[code]].NextCode
		}
	}

	code := c.steps[0].Code
	for pos := 0; ; pos++ {
		c.path[code] = pos
		if code == c.terminal {
			break
		}
		code = c.steps[c.byCode[code]].NextCode
	}

	return c, nil
}

// Lookup returns the step with the given code or an error wrapping domain.ErrInvalidStep.
func (c *Catalog) Lookup(code string) (domain.StepDefinition, error) {
	i, ok := c.byCode[code]
	if !ok {
		return domain.StepDefinition{}, fmt.Errorf("%w: %q", domain.ErrInvalidStep, code)
	}
	return c.steps[i], nil
}

// First is the initial step for new workflows.
func (c *Catalog) First() string {
	return c.steps[0].Code
}

func (c *Catalog) Terminal() string {
	return c.terminal
}

func (c *Catalog) IsTerminal(code string) bool {
	return code == c.terminal
}

// Steps returns the definitions in table order.
func (c *Catalog) Steps() []domain.StepDefinition {
	out := make([]domain.StepDefinition, len(c.steps))
	copy(out, c.steps)
	return out
}

// Position returns how many advances separate code from First, or -1 when code
// is not on that chain.
func (c *Catalog) Position(code string) int {
	if pos, ok := c.path[code]; ok {
		return pos
	}
	return -1
}
