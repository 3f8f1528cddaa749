// Package storyfile reads and writes story documents, the YAML or JSON
// files a story arrives in from upstream. Each document carries a
// schemaVersion; documents from a newer major version are rejected.
package storyfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/elab/internal/types"
)

// SchemaVersion is the document version this build writes
const SchemaVersion = "v1.1.0"

// ErrUnsupportedVersion is returned for documents whose major version
// differs from SchemaVersion
var ErrUnsupportedVersion = errors.New("unsupported story file schema version")

// Format is a document encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the encoding from a file extension. Unknown extensions
// are read as YAML, which also accepts JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Document is a story together with the context it was written against
type Document struct {
	SchemaVersion string                  `json:"schemaVersion" yaml:"schemaVersion" jsonschema:"description=Semantic version of the story file format such as v1.1.0"`
	Story         types.Story             `json:"story" yaml:"story" jsonschema:"required"`
	Baseline      *types.Baseline         `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Context       *types.RetrievedContext `json:"context,omitempty" yaml:"context,omitempty"`
}

// Load reads and validates a story document
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	doc, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a story document. A missing schemaVersion
// is read as the current version.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse story JSON: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse story YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown story file format: %s", format)
	}

	version, err := CheckVersion(doc.SchemaVersion)
	if err != nil {
		return nil, err
	}
	doc.SchemaVersion = version

	if err := doc.Story.Validate(); err != nil {
		return nil, fmt.Errorf("invalid story: %w", err)
	}
	return &doc, nil
}

// CheckVersion normalizes a document version ("1", "1.0" and "v1.0.0" are
// all accepted) and rejects versions from another major line
func CheckVersion(version string) (string, error) {
	if version == "" {
		return SchemaVersion, nil
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid schemaVersion %q: not a semantic version", version)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return "", fmt.Errorf("%w: %s (this build reads %s.x)", ErrUnsupportedVersion, version, semver.Major(SchemaVersion))
	}
	return semver.Canonical(v), nil
}

// Write encodes a document in the format implied by path
func Write(path string, doc *Document) error {
	data, err := Marshal(doc, FormatOf(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write story file: %w", err)
	}
	return nil
}

// Marshal encodes a document, stamping the current schema version
func Marshal(doc *Document, format Format) ([]byte, error) {
	out := *doc
	out.SchemaVersion = SchemaVersion
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(&out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal story JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(&out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal story YAML: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown story file format: %s", format)
}

// Schema returns the JSON schema of a story document
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&Document{})
	schema.Title = "elab story file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
