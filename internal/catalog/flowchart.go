package catalog

import (
	"fmt"
	"strings"
)

// Flowchart renders the chain as a mermaid diagram.
func (c *Catalog) Flowchart() string {
	var sb strings.Builder

	doneClass := "fill:#4ECDC4,stroke:#1F9C8C,stroke-width:2px,color:#fff,stroke-dasharray: 4 2,rx:10,ry:10;"
	startClass := "fill:#5568FE,stroke:#3346FF,stroke-width:2px,color:#fff,stroke-dasharray: 4 2,rx:10,ry:10;"
	normalClass := "fill:#F0F4F8,stroke:#B0C4DE,stroke-width:1px,color:#333,rx:10,ry:10;"

	sb.WriteString("flowchart TD\n")
	for _, s := range c.steps {
		sb.WriteString(fmt.Sprintf("    %s[\"%s: %s\"]\n", s.Code, s.Code, s.Name))
	}
	for _, s := range c.steps {
		if !s.IsTerminal() {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", s.Code, s.NextCode))
		}
	}

	sb.WriteString(fmt.Sprintf("    classDef doneClass %s\n", doneClass))
	sb.WriteString(fmt.Sprintf("    classDef startClass %s\n", startClass))
	sb.WriteString(fmt.Sprintf("    classDef normalClass %s\n", normalClass))

	for _, s := range c.steps {
		switch {
		case s.Code == c.First():
			sb.WriteString(fmt.Sprintf("    class %s startClass;\n", s.Code))
		case s.IsTerminal():
			sb.WriteString(fmt.Sprintf("    class %s doneClass;\n", s.Code))
		default:
			sb.WriteString(fmt.Sprintf("    class %s normalClass;\n", s.Code))
		}
	}
	return sb.String()
}
