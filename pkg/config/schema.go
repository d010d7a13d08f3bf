package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/picshelf-config-v1.0.0.json
var schemaV1 string

// CurrentSchemaVersion is the schema applied when a file does not name one.
const CurrentSchemaVersion = "1.0.0"

// SchemaVersion represents a configuration schema version
type SchemaVersion struct {
	Major int
	Minor int
	Patch int
}

// String returns the string representation of the version
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSchemaVersion parses a version string into SchemaVersion
func ParseSchemaVersion(version string) (SchemaVersion, error) {
	version = strings.TrimPrefix(version, "v")
	if len(strings.Split(version, ".")) != 3 {
		return SchemaVersion{}, fmt.Errorf("invalid version format: %s", version)
	}

	var v SchemaVersion
	if _, err := fmt.Sscanf(version, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		return SchemaVersion{}, fmt.Errorf("failed to parse version: %v", err)
	}
	return v, nil
}

// DecodeFile parses YAML (or JSON) config data into a generic document.
// An empty file decodes to an empty document.
func DecodeFile(data []byte) (map[string]interface{}, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// DetectSchemaVersion reads the version from an optional $schema URL ending in /vX.Y.Z.
func DetectSchemaVersion(doc map[string]interface{}) (string, error) {
	raw, ok := doc["$schema"]
	if !ok {
		return CurrentSchemaVersion, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("$schema must be a string")
	}
	i := strings.LastIndex(s, "/v")
	if i < 0 {
		return CurrentSchemaVersion, nil
	}
	v, err := ParseSchemaVersion(s[i+2:])
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// ValidateDocument validates a decoded config document against the schema it names.
func ValidateDocument(doc map[string]interface{}) error {
	version, err := DetectSchemaVersion(doc)
	if err != nil {
		return err
	}
	schemaLoader, err := getSchemaLoader(version)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %v", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// ValidateConfig decodes and validates raw config data, returning the document
// without its $schema key.
func ValidateConfig(data []byte) (map[string]interface{}, error) {
	doc, err := DecodeFile(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	delete(doc, "$schema")
	return doc, nil
}

func getSchemaLoader(version string) (gojsonschema.JSONLoader, error) {
	switch version {
	case "1.0.0":
		return gojsonschema.NewStringLoader(schemaV1), nil
	default:
		return nil, fmt.Errorf("unsupported schema version: %s", version)
	}
}
