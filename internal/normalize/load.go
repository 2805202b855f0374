package normalize

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML shape of an editable rule table set.
type ruleFile struct {
	Fields []FieldRules `yaml:"fields"`
}

// LoadRules decodes rule tables from YAML. Tables for fields the document
// does not mention fall back to the built-in ones.
func LoadRules(r io.Reader) ([]FieldRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	overrides := make(map[string]FieldRules, len(doc.Fields))
	var extra []FieldRules
	for _, table := range doc.Fields {
		if _, known := overrides[table.Field]; known {
			return nil, fmt.Errorf("%w: field %s declared twice", ErrInvalidRules, table.Field)
		}
		overrides[table.Field] = table
	}

	tables := DefaultRules()
	for i, builtin := range tables {
		if table, ok := overrides[builtin.Field]; ok {
			tables[i] = table
			delete(overrides, builtin.Field)
		}
	}
	for _, table := range doc.Fields {
		if _, ok := overrides[table.Field]; ok {
			extra = append(extra, table)
		}
	}
	return append(tables, extra...), nil
}

// LoadFile builds a normalizer from a YAML rules file. An empty path yields
// the built-in normalizer.
func LoadFile(path string) (*Normalizer, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	tables, err := LoadRules(f)
	if err != nil {
		return nil, err
	}
	return New(tables...)
}
