// Package manifest parses release manifests published by the distribution.
//
// Manifest JSON is untrusted input: it is validated against an embedded JSON
// schema before any field is read, so malformed or adversarial documents are
// rejected at the boundary with a precise error.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

// Release is a published release of the node binary.
type Release struct {
	Version      string            `json:"version"`
	SHA256       string            `json:"sha256"`
	Signature    string            `json:"signature"`
	MinVersion   string            `json:"min_version"`
	ReleaseNotes string            `json:"release_notes"`
	ReleasedAt   string            `json:"released_at"`
	Downloads    map[string]string `json:"downloads"`
	Size         int64             `json:"size"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse embedded manifest schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("register manifest schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("manifest.schema.json")
	})
	return schema, schemaErr
}

// Parse validates data against the manifest schema and unmarshals it.
func Parse(data []byte) (*Release, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("manifest failed schema validation: %w", err)
	}
	var rel Release
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	rel.SHA256 = strings.ToLower(rel.SHA256)
	rel.Signature = strings.ToLower(rel.Signature)
	return &rel, nil
}

// DownloadFor returns the URL published for a platform key, e.g.
// "linux_x86_64".
func (r *Release) DownloadFor(platformKey string) (string, bool) {
	url, ok := r.Downloads[platformKey]
	return url, ok
}
