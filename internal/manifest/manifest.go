package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"

	"github.com/containerd/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/tailscale/hujson"
)

const (

	// Reserved key holding the ordered build step list.
	StepsKey = "-aci-packer-build-steps-"

	// Default image manifest kind.
	DefaultKind = "ImageManifest"

	// Default App Container specification version.
	DefaultVersion = "0.4.1"

	labelsKey = "labels"
)

// Image manifest as a generic JSON object.
//
// Numbers are kept as [json.Number] so values round-trip unchanged.
type Manifest map[string]any

// Name/value pair in the manifest's labels list.
type Label struct {
	Name  string `json:"name"`  // Label name, unique within a manifest.
	Value string `json:"value"` // Label value.
}

// Parsed build manifest.
type Document struct {
	Manifest Manifest // User manifest with the step list removed.
	Steps    []Step   // Build steps in execution order.
}

// Reads and parses the build manifest at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", errdefs.ErrNotFound, path, err)
		}
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parses a build manifest.
//
// The input may contain comments and trailing commas. The reserved steps key
// must be present and hold a list; each entry is decoded with [DecodeStep].
func Parse(data []byte) (*Document, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(std, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: manifest is not an object", ErrInvalidManifest)
	}

	rawSteps, ok := fields[StepsKey]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidManifest, ErrMissingSteps, StepsKey)
	}
	delete(fields, StepsKey)

	var items []json.RawMessage
	if err := json.Unmarshal(rawSteps, &items); err != nil {
		return nil, fmt.Errorf("%w: %q must be a list: %w", ErrInvalidManifest, StepsKey, err)
	}

	doc := &Document{
		Manifest: make(Manifest, len(fields)),
		Steps:    make([]Step, 0, len(items)),
	}

	for i, item := range items {
		step, err := DecodeStep(item)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrInvalidManifest, i+1, err)
		}
		doc.Steps = append(doc.Steps, step)
	}

	for key, raw := range fields {
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidManifest, key, err)
		}
		doc.Manifest[key] = value
	}

	return doc, nil
}

// Decodes a JSON value keeping numbers as [json.Number].
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Returns the default manifest for images built for the given platform.
func Defaults(p ocispec.Platform) Manifest {
	return Manifest{
		"acKind":    DefaultKind,
		"acVersion": DefaultVersion,
		labelsKey: []Label{
			{Name: "arch", Value: p.Architecture},
			{Name: "os", Value: p.OS},
		},
	}
}

// Returns the manifest's labels.
//
// A manifest without labels returns an empty list.
func (m Manifest) Labels() ([]Label, error) {
	raw, ok := m[labelsKey]
	if !ok || raw == nil {
		return nil, nil
	}
	if labels, ok := raw.([]Label); ok {
		return labels, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var labels []Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("%w: labels: %w", ErrInvalidManifest, err)
	}
	return labels, nil
}

// Merges a user manifest over the defaults.
//
// Top-level keys are replaced wholesale by the user's values, except labels,
// which are merged by name: default labels keep their position and take the
// user's value when the user sets the same name, and labels only the user
// defines follow in the user's order. Neither input is modified.
func Merge(defaults, user Manifest) (Manifest, error) {
	base, err := defaults.Labels()
	if err != nil {
		return nil, err
	}
	overrides, err := user.Labels()
	if err != nil {
		return nil, err
	}

	merged := maps.Clone(defaults)
	if merged == nil {
		merged = make(Manifest, len(user))
	}
	maps.Copy(merged, user)
	delete(merged, StepsKey)

	if labels := MergeLabels(base, overrides); len(labels) > 0 {
		merged[labelsKey] = labels
	}
	return merged, nil
}

// Merges two label lists by name, with override values taking precedence.
// The result never contains a name twice.
func MergeLabels(base, overrides []Label) []Label {
	index := make(map[string]int, len(base)+len(overrides))
	result := make([]Label, 0, len(base)+len(overrides))

	for _, list := range [][]Label{base, overrides} {
		for _, l := range list {
			if i, ok := index[l.Name]; ok {
				result[i].Value = l.Value
				continue
			}
			index[l.Name] = len(result)
			result = append(result, l)
		}
	}
	return result
}

// Encodes the manifest as JSON.
func (m Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
