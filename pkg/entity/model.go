// Package entity is a reference in-memory collaborator for the execution
// engine: a small lab-metadata world (spaces, projects, experiments, samples,
// datasets, materials, vocabularies, tags) with snapshot transactions, plus
// handlers for the full create/update/delete kind set. It exists so the
// engine has real handlers to dispatch to; it deliberately carries no
// business rules beyond identifier uniqueness and reference checking.
package entity

import "fmt"

type Space struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type Project struct {
	Code        string `json:"code"`
	Space       string `json:"space"`
	Description string `json:"description,omitempty"`
}

// Identifier returns the project's path identifier, e.g. "/LAB/SCREENING".
func (p Project) Identifier() string {
	return fmt.Sprintf("/%s/%s", p.Space, p.Code)
}

type Experiment struct {
	Code       string            `json:"code"`
	Project    string            `json:"project"`
	Type       string            `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Identifier returns the experiment's path identifier,
// e.g. "/LAB/SCREENING/EXP-1". Project is itself a project identifier.
func (e Experiment) Identifier() string {
	return fmt.Sprintf("%s/%s", e.Project, e.Code)
}

type Sample struct {
	Code       string            `json:"code"`
	Space      string            `json:"space"`
	Experiment string            `json:"experiment,omitempty"`
	Type       string            `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`

	// Parents are sample identifiers of this sample's parents.
	Parents []string `json:"parents,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Identifier returns the sample's path identifier, e.g. "/LAB/S-47".
func (s Sample) Identifier() string {
	return fmt.Sprintf("/%s/%s", s.Space, s.Code)
}

type DataSet struct {
	Code       string            `json:"code"`
	Type       string            `json:"type,omitempty"`
	Experiment string            `json:"experiment,omitempty"`
	Sample     string            `json:"sample,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type Material struct {
	Code       string            `json:"code"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Identifier returns the material identifier, e.g. "GFP (CONTROL)".
func (m Material) Identifier() string {
	return fmt.Sprintf("%s (%s)", m.Code, m.Type)
}

type VocabularyTerm struct {
	Code       string `json:"code"`
	Vocabulary string `json:"vocabulary"`
	Label      string `json:"label,omitempty"`
}

// Identifier returns the term identifier, e.g. "HUMAN (ORGANISM)".
func (t VocabularyTerm) Identifier() string {
	return fmt.Sprintf("%s (%s)", t.Code, t.Vocabulary)
}

type Vocabulary struct {
	Code        string           `json:"code"`
	Description string           `json:"description,omitempty"`
	Terms       []VocabularyTerm `json:"terms,omitempty"`
}

type Tag struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}
