// Package npm locates installed packages in a node_modules lookup directory
// and models their manifests and output locations.
package npm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ManifestFile is the package descriptor file name.
const ManifestFile = "package.json"

// DefaultEntry is used when a descriptor names no entry file.
const DefaultEntry = "index.js"

// Descriptor is the subset of package.json that drives resolution.
type Descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type,omitempty"`

	ES2015     string  `json:"es2015,omitempty"`
	ESM2015    string  `json:"esm2015,omitempty"`
	FESM2015   string  `json:"fesm2015,omitempty"`
	JSNextMain string  `json:"jsnext:main,omitempty"`
	Module     string  `json:"module,omitempty"`
	Main       string  `json:"main,omitempty"`
	Browser    Browser `json:"browser,omitempty"`

	Dependencies     map[string]string `json:"dependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
}

// Browser holds the string form of the "browser" field. The object form
// (a replacement map) decodes to an empty value.
type Browser string

func (b *Browser) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*b = ""
		return nil
	}
	*b = Browser(s)
	return nil
}

// ReadDescriptor decodes the manifest at path.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %q: %w", path, err)
	}
	return &d, nil
}

// EntryPoint returns the file the package presents as its default import.
// The ES2015 module fields win over jsnext:main, then module, main and
// browser, falling back to index.js.
func (d *Descriptor) EntryPoint() string {
	for _, candidate := range []string{
		d.ESM2015, d.ES2015, d.FESM2015,
		d.JSNextMain, d.Module, d.Main, string(d.Browser),
	} {
		if candidate != "" {
			return candidate
		}
	}
	return DefaultEntry
}

// IsModule reports whether the package ships ES modules.
func (d *Descriptor) IsModule() bool {
	return d.ESM2015 != "" || d.ES2015 != "" || d.FESM2015 != "" ||
		d.JSNextMain != "" || d.Module != "" || d.Type == "module"
}

// Requires returns the sorted names of the package's dependencies and peer
// dependencies.
func (d *Descriptor) Requires() []string {
	seen := make(map[string]bool, len(d.Dependencies)+len(d.PeerDependencies))
	var names []string
	for _, deps := range []map[string]string{d.Dependencies, d.PeerDependencies} {
		for name := range deps {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
