package environments

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk environments document.
//
//	environments:
//	  - name: master
//	    weight: 4
//	    url: master.example.com
//	  - name: beta
//	    weight: 1
//	    url: beta.example.com
//	previews:
//	  - name: new-app
//	    url: new-app.example.com
//
// The url fields are only read by the static directory source; other sources
// resolve URLs from the deployment platform and ignore them.
type File struct {
	Environments []FileEnvironment `yaml:"environments" json:"environments"`
	Previews     []FilePreview     `yaml:"previews,omitempty" json:"previews,omitempty"`
}

// FileEnvironment is a weighted environment entry.
type FileEnvironment struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
	URL    string  `yaml:"url,omitempty" json:"url,omitempty"`
}

// FilePreview is a branch preview environment that receives no split traffic.
type FilePreview struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// LoadFile reads and parses an environments document and validates its
// weight table, so malformed weights fail at startup rather than mid-request.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environments file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an environments document from YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse environments file: %w", err)
	}
	if _, err := f.Table(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Table builds the validated weight table, preserving declaration order.
func (f *File) Table() (*WeightTable, error) {
	entries := make([]Weight, len(f.Environments))
	for i, e := range f.Environments {
		entries[i] = Weight{Name: e.Name, Weight: e.Weight}
	}
	return NewWeightTable(entries)
}

// URLs returns every declared name with a non-empty url, previews included.
func (f *File) URLs() map[string]string {
	urls := make(map[string]string, len(f.Environments)+len(f.Previews))
	for _, e := range f.Environments {
		if e.URL != "" {
			urls[e.Name] = e.URL
		}
	}
	for _, p := range f.Previews {
		if p.Name != "" && p.URL != "" {
			urls[p.Name] = p.URL
		}
	}
	return urls
}
