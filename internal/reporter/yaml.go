package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// generateYAMLReport renders the JSON document as YAML so both outputs
// carry the same keys in the same order.
func (rg *ReportGenerator) generateYAMLReport(report *Report, writer io.Writer) error {
	return writeYAML(rg.document(report), writer)
}

func writeYAML(v interface{}, writer io.Writer) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert report to YAML: %w", err)
	}
	blockStyle(&node)

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return fmt.Errorf("failed to write YAML report: %w", err)
	}
	return encoder.Close()
}

// blockStyle clears the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
