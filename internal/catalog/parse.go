package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog wraps every structural validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the decoder by file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func decode(data []byte, format Format, v interface{}) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatJSON, "":
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Parse decodes and validates a catalog document.
func Parse(data []byte, format Format) (*Catalog, error) {
	var c Catalog
	if err := decode(data, format, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate enforces the structural rules: non-empty unique question IDs and
// domain weights expressed as fractions in [0,1].
func (c *Catalog) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("%w: no domains", ErrInvalidCatalog)
	}
	seen := make(map[string]string)
	for _, dk := range c.DomainKeys() {
		d := c.Domains[dk]
		if d.Weight < 0 || d.Weight > 1 || math.IsNaN(d.Weight) {
			return fmt.Errorf("%w: domain %q weight %v outside [0,1]", ErrInvalidCatalog, dk, d.Weight)
		}
		for _, ck := range d.CategoryKeys() {
			for i, q := range d.Categories[ck].Questions {
				if strings.TrimSpace(q.ID) == "" {
					return fmt.Errorf("%w: %s/%s question %d has no id", ErrInvalidCatalog, dk, ck, i)
				}
				if prev, dup := seen[q.ID]; dup {
					return fmt.Errorf("%w: duplicate question id %q in %s and %s/%s", ErrInvalidCatalog, q.ID, prev, dk, ck)
				}
				seen[q.ID] = dk + "/" + ck
			}
		}
	}
	return nil
}

// WeightWarnings reports configuration smells that do not block loading:
// a weight sum that is not 1.0.
func (c *Catalog) WeightWarnings() []string {
	var sum float64
	for _, k := range c.DomainKeys() {
		sum += c.Domains[k].Weight
	}
	if math.Abs(sum-1.0) > 0.001 {
		return []string{fmt.Sprintf("domain weights sum to %.4f, expected 1.0", sum)}
	}
	return nil
}

// ParseFrameworks decodes a frameworkId → Framework document. The map key wins
// over any id inside the body.
func ParseFrameworks(data []byte, format Format) ([]Framework, error) {
	var raw map[string]Framework
	if err := decode(data, format, &raw); err != nil {
		return nil, fmt.Errorf("decode frameworks: %w", err)
	}
	out := make([]Framework, 0, len(raw))
	for _, id := range sortedKeys(raw) {
		fw := raw[id]
		fw.ID = id
		if err := fw.Validate(); err != nil {
			return nil, err
		}
		out = append(out, fw)
	}
	return out, nil
}

// Validate checks the framework ID and threshold range.
func (f Framework) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: framework has no id", ErrInvalidCatalog)
	}
	if f.Threshold < 0 || f.Threshold > 5 || math.IsNaN(f.Threshold) {
		return fmt.Errorf("%w: framework %q threshold %v outside [0,5]", ErrInvalidCatalog, f.ID, f.Threshold)
	}
	return nil
}

// ParseUsers decodes a userId → User document.
func ParseUsers(data []byte, format Format) ([]User, error) {
	var raw map[string]User
	if err := decode(data, format, &raw); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	out := make([]User, 0, len(raw))
	for _, id := range sortedKeys(raw) {
		u := raw[id]
		u.ID = id
		if u.Role == "" {
			u.Role = RoleUser
		}
		if u.Role != RoleUser && u.Role != RoleAdmin {
			return nil, fmt.Errorf("%w: user %q has unknown role %q", ErrInvalidCatalog, id, u.Role)
		}
		out = append(out, u)
	}
	return out, nil
}
