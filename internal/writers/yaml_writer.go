package writers

import (
	"fmt"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"

	"mongotable/internal/formatters"
	"mongotable/internal/table"
)

type yamlWriter struct{}

// Write emits a YAML sequence with one mapping per row. NA cells are null.
func (yamlWriter) Write(w io.Writer, t *table.Table, _ Options) (int, error) {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	rootSeq := &yaml.Node{Kind: yaml.SequenceNode}
	columns := t.Columns()

	rowCount := 0
	for _, row := range t.Rows() {
		rowNode := &yaml.Node{Kind: yaml.MappingNode}
		for i, name := range columns {
			valueNode, err := yamlValue(row[i])
			if err != nil {
				return rowCount, fmt.Errorf("error encoding YAML row %d: %w", rowCount+1, err)
			}
			rowNode.Content = append(rowNode.Content, scalarNode(name), valueNode)
		}
		rootSeq.Content = append(rootSeq.Content, rowNode)
		rowCount++
	}

	if err := enc.Encode(rootSeq); err != nil {
		return rowCount, fmt.Errorf("error writing YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return rowCount, fmt.Errorf("error closing YAML encoder: %w", err)
	}
	return rowCount, nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// yamlValue converts a cell into a node, keeping the field order of nested documents.
func yamlValue(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case bson.D:
		node := &yaml.Node{Kind: yaml.MappingNode}
		for _, elem := range val {
			child, err := yamlValue(elem.Value)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalarNode(elem.Key), child)
		}
		return node, nil
	case bson.M:
		return yamlMap(val)
	case map[string]any:
		return yamlMap(val)
	case primitive.A:
		return yamlSeq(val)
	case []any:
		return yamlSeq(val)
	}

	out, _ := formatters.Scalar(v)
	node := &yaml.Node{}
	if err := node.Encode(out); err != nil {
		return nil, err
	}
	return node, nil
}

func yamlMap(m map[string]any) (*yaml.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		child, err := yamlValue(m[k])
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, scalarNode(k), child)
	}
	return node, nil
}

func yamlSeq(items []any) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode}
	for _, item := range items {
		child, err := yamlValue(item)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, child)
	}
	return node, nil
}

func init() {
	MustRegister(FormatYAML, func() Writer { return yamlWriter{} })
}
