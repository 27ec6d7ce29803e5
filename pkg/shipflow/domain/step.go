package domain

import "time"

type StepDefinition struct {
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// NextCode is empty for the terminal step.
	NextCode string `yaml:"next" json:"nextCode,omitempty"`
}

func (s StepDefinition) IsTerminal() bool {
	return s.NextCode == ""
}

// StepDefinitionRow is the persisted copy of a catalog entry, refreshed at startup.
type StepDefinitionRow struct {
	Code        string    `db:"code"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	NextCode    string    `db:"next_code"`
	Position    int       `db:"position"`
	Updated     time.Time `db:"updated_at"`
}
