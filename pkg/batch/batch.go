// Package batch parses YAML/JSON batch files of calculator expressions and
// runs them through an engine.
package batch

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MaxExpressions is the maximum number of expressions in one batch.
const MaxExpressions = 1000

// MaxSourceSize is the maximum batch source size in bytes (128 KB).
const MaxSourceSize = 128 * 1024

// ParseError represents an error encountered while parsing a batch file.
type ParseError struct {
	Message  string
	Location string // e.g., "expression 3"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Entry is one expression of a batch, with an optional expected result.
type Entry struct {
	Expression string `json:"expression"`
	Expect     string `json:"expect,omitempty"`
	HasExpect  bool   `json:"-"`
}

// File is a parsed batch file.
type File struct {
	Name    string
	Strict  bool
	Entries []Entry
}

// EntriesFromStrings builds entries without expectations.
func EntriesFromStrings(expressions []string) []Entry {
	entries := make([]Entry, len(expressions))
	for i, e := range expressions {
		entries[i] = Entry{Expression: e}
	}
	return entries
}

// Parse parses a YAML or JSON batch definition. The document is either a
// mapping with "name", "strict" and "expressions" keys, or a bare sequence
// of expressions.
func Parse(source []byte) (*File, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("batch source size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty batch definition"}
	}

	root := raw.Content[0]
	file := &File{}

	switch root.Kind {
	case yaml.SequenceNode:
		entries, err := parseEntries(root)
		if err != nil {
			return nil, err
		}
		file.Entries = entries
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i].Value
			val := root.Content[i+1]

			switch key {
			case "name":
				if val.Kind != yaml.ScalarNode {
					return nil, &ParseError{Message: "name must be a string"}
				}
				file.Name = val.Value
			case "strict":
				if err := val.Decode(&file.Strict); err != nil {
					return nil, &ParseError{Message: fmt.Sprintf("strict must be a boolean: %v", err)}
				}
			case "expressions":
				entries, err := parseEntries(val)
				if err != nil {
					return nil, err
				}
				file.Entries = entries
			default:
				return nil, &ParseError{Message: fmt.Sprintf("unknown key '%s' in batch definition", key)}
			}
		}
	default:
		return nil, &ParseError{Message: "batch definition must be a mapping or sequence"}
	}

	if len(file.Entries) == 0 {
		return nil, &ParseError{Message: "batch must have at least one expression"}
	}
	return file, nil
}

// parseEntries parses the expressions sequence. Items are plain scalars or
// mappings with "expression" and an optional "expect".
func parseEntries(node *yaml.Node) ([]Entry, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "expressions must be a sequence"}
	}
	if len(node.Content) > MaxExpressions {
		return nil, &ParseError{Message: fmt.Sprintf("batch has %d expressions, maximum is %d", len(node.Content), MaxExpressions)}
	}

	entries := make([]Entry, 0, len(node.Content))
	for i, item := range node.Content {
		loc := fmt.Sprintf("expression %d", i+1)

		switch item.Kind {
		case yaml.ScalarNode:
			// Scalar values keep their source text, so 11.0 stays "11.0".
			entries = append(entries, Entry{Expression: item.Value})
		case yaml.MappingNode:
			var entry Entry
			seenExpr := false
			for j := 0; j+1 < len(item.Content); j += 2 {
				key := item.Content[j].Value
				val := item.Content[j+1]
				if val.Kind != yaml.ScalarNode {
					return nil, &ParseError{Message: fmt.Sprintf("'%s' must be a scalar", key), Location: loc}
				}
				switch key {
				case "expression":
					entry.Expression = val.Value
					seenExpr = true
				case "expect":
					entry.Expect = val.Value
					entry.HasExpect = true
				default:
					return nil, &ParseError{Message: fmt.Sprintf("unknown key '%s'", key), Location: loc}
				}
			}
			if !seenExpr {
				return nil, &ParseError{Message: "missing 'expression'", Location: loc}
			}
			entries = append(entries, entry)
		default:
			return nil, &ParseError{Message: "expression must be a string or a mapping", Location: loc}
		}
	}
	return entries, nil
}
