// Package catalog holds the static assessment structure: domains, categories,
// questions, compliance frameworks and the users questions are assigned to.
package catalog

import (
	"sort"
)

// Question is a single rated item. IDs are unique across the whole catalog.
type Question struct {
	ID               string `json:"id" yaml:"id"`
	Text             string `json:"text" yaml:"text"`
	RequiresEvidence bool   `json:"requiresEvidence" yaml:"requiresEvidence"`
}

// Category groups questions for display and averaging. Question order is preserved.
type Category struct {
	Title     string     `json:"title" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Domain is a top-level grouping carrying a scoring weight expressed as a fraction.
type Domain struct {
	Title      string              `json:"title" yaml:"title"`
	Weight     float64             `json:"weight" yaml:"weight"`
	Categories map[string]Category `json:"categories" yaml:"categories"`
}

// CategoryKeys returns the domain's category keys in stable (sorted) order.
func (d Domain) CategoryKeys() []string {
	return sortedKeys(d.Categories)
}

// Questions flattens every category of the domain in stable order.
func (d Domain) Questions() []Question {
	var out []Question
	for _, key := range d.CategoryKeys() {
		out = append(out, d.Categories[key].Questions...)
	}
	return out
}

// Catalog is the full questionnaire.
type Catalog struct {
	Domains map[string]Domain `json:"domains" yaml:"domains"`
}

// DomainKeys returns domain keys in stable (sorted) order.
func (c *Catalog) DomainKeys() []string {
	return sortedKeys(c.Domains)
}

// QuestionIDs returns every question ID in the catalog in stable order.
func (c *Catalog) QuestionIDs() []string {
	var ids []string
	for _, dk := range c.DomainKeys() {
		for _, q := range c.Domains[dk].Questions() {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Lookup finds a question and the domain/category keys it belongs to.
func (c *Catalog) Lookup(questionID string) (q Question, domainKey, categoryKey string, ok bool) {
	for dk, d := range c.Domains {
		for ck, cat := range d.Categories {
			for _, candidate := range cat.Questions {
				if candidate.ID == questionID {
					return candidate, dk, ck, true
				}
			}
		}
	}
	return Question{}, "", "", false
}

// Has reports whether the question ID exists in the catalog.
func (c *Catalog) Has(questionID string) bool {
	_, _, _, ok := c.Lookup(questionID)
	return ok
}

// Weights returns the domain weight mapping declared by the catalog.
func (c *Catalog) Weights() map[string]float64 {
	w := make(map[string]float64, len(c.Domains))
	for k, d := range c.Domains {
		w[k] = d.Weight
	}
	return w
}

// Framework maps a subset of questions to a pass/fail threshold on the 1–5 rating scale.
type Framework struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	Threshold       float64  `json:"threshold" yaml:"threshold"`
	MappedQuestions []string `json:"mappedQuestions" yaml:"mappedQuestions"`
	Color           string   `json:"color,omitempty" yaml:"color,omitempty"`
	Icon            string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an assessor. AssignedQuestions scopes the user-facing progress view.
type User struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Role              Role     `json:"role" yaml:"role"`
	AssignedQuestions []string `json:"assignedQuestions" yaml:"assignedQuestions"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
