package entity

import (
	"fmt"

	"github.com/tracelab/opexec/pkg/operation"
)

// Update operations address their target by its natural identifier. Pointer
// fields distinguish "leave unchanged" (nil) from "set to empty".

type UpdateSpace struct {
	Code        string  `json:"code"`
	Description *string `json:"description,omitempty"`
}

func (o *UpdateSpace) OperationKind() operation.Kind { return KindUpdateSpaces }
func (o *UpdateSpace) Describe() string              { return fmt.Sprintf("update space %s", o.Code) }

type UpdateProject struct {
	Project     string  `json:"project"`
	Description *string `json:"description,omitempty"`
}

func (o *UpdateProject) OperationKind() operation.Kind { return KindUpdateProjects }
func (o *UpdateProject) Describe() string              { return fmt.Sprintf("update project %s", o.Project) }

type UpdateExperiment struct {
	Experiment string            `json:"experiment"`
	Type       *string           `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (o *UpdateExperiment) OperationKind() operation.Kind { return KindUpdateExperiments }
func (o *UpdateExperiment) Describe() string {
	return fmt.Sprintf("update experiment %s", o.Experiment)
}

type UpdateSample struct {
	Sample     string            `json:"sample"`
	Type       *string           `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`

	// AddParents and RemoveParents adjust the parent set by identifier.
	AddParents    []string `json:"add_parents,omitempty"`
	RemoveParents []string `json:"remove_parents,omitempty"`
	AddTags       []string `json:"add_tags,omitempty"`
	RemoveTags    []string `json:"remove_tags,omitempty"`
}

func (o *UpdateSample) OperationKind() operation.Kind { return KindUpdateSamples }
func (o *UpdateSample) Describe() string              { return fmt.Sprintf("update sample %s", o.Sample) }

type UpdateDataSet struct {
	Code       string            `json:"code"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (o *UpdateDataSet) OperationKind() operation.Kind { return KindUpdateDataSets }
func (o *UpdateDataSet) Describe() string              { return fmt.Sprintf("update dataset %s", o.Code) }

type UpdateMaterial struct {
	Code       string            `json:"code"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (o *UpdateMaterial) OperationKind() operation.Kind { return KindUpdateMaterials }
func (o *UpdateMaterial) Describe() string {
	return fmt.Sprintf("update material %s (%s)", o.Code, o.Type)
}

type UpdateVocabulary struct {
	Code        string  `json:"code"`
	Description *string `json:"description,omitempty"`
}

func (o *UpdateVocabulary) OperationKind() operation.Kind { return KindUpdateVocabularies }
func (o *UpdateVocabulary) Describe() string              { return fmt.Sprintf("update vocabulary %s", o.Code) }

type UpdateVocabularyTerm struct {
	Code       string  `json:"code"`
	Vocabulary string  `json:"vocabulary"`
	Label      *string `json:"label,omitempty"`
}

func (o *UpdateVocabularyTerm) OperationKind() operation.Kind { return KindUpdateVocabularyTerms }
func (o *UpdateVocabularyTerm) Describe() string {
	return fmt.Sprintf("update vocabulary term %s (%s)", o.Code, o.Vocabulary)
}

type UpdateTag struct {
	Code        string  `json:"code"`
	Description *string `json:"description,omitempty"`
}

func (o *UpdateTag) OperationKind() operation.Kind { return KindUpdateTags }
func (o *UpdateTag) Describe() string              { return fmt.Sprintf("update tag %s", o.Code) }
