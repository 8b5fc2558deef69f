package entity

import (
	"fmt"

	"github.com/tracelab/opexec/pkg/operation"
)

type DeleteSpace struct {
	Code string `json:"code"`
}

func (o *DeleteSpace) OperationKind() operation.Kind { return KindDeleteSpaces }
func (o *DeleteSpace) Describe() string              { return fmt.Sprintf("delete space %s", o.Code) }

type DeleteProject struct {
	Project string `json:"project"`
}

func (o *DeleteProject) OperationKind() operation.Kind { return KindDeleteProjects }
func (o *DeleteProject) Describe() string              { return fmt.Sprintf("delete project %s", o.Project) }

type DeleteExperiment struct {
	Experiment string `json:"experiment"`
}

func (o *DeleteExperiment) OperationKind() operation.Kind { return KindDeleteExperiments }
func (o *DeleteExperiment) Describe() string {
	return fmt.Sprintf("delete experiment %s", o.Experiment)
}

type DeleteSample struct {
	Sample string `json:"sample"`
}

func (o *DeleteSample) OperationKind() operation.Kind { return KindDeleteSamples }
func (o *DeleteSample) Describe() string              { return fmt.Sprintf("delete sample %s", o.Sample) }

type DeleteDataSet struct {
	Code string `json:"code"`
}

func (o *DeleteDataSet) OperationKind() operation.Kind { return KindDeleteDataSets }
func (o *DeleteDataSet) Describe() string              { return fmt.Sprintf("delete dataset %s", o.Code) }

type DeleteMaterial struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

func (o *DeleteMaterial) OperationKind() operation.Kind { return KindDeleteMaterials }
func (o *DeleteMaterial) Describe() string {
	return fmt.Sprintf("delete material %s (%s)", o.Code, o.Type)
}

type DeleteVocabulary struct {
	Code string `json:"code"`
}

func (o *DeleteVocabulary) OperationKind() operation.Kind { return KindDeleteVocabularies }
func (o *DeleteVocabulary) Describe() string              { return fmt.Sprintf("delete vocabulary %s", o.Code) }

type DeleteVocabularyTerm struct {
	Code       string `json:"code"`
	Vocabulary string `json:"vocabulary"`
}

func (o *DeleteVocabularyTerm) OperationKind() operation.Kind { return KindDeleteVocabularyTerms }
func (o *DeleteVocabularyTerm) Describe() string {
	return fmt.Sprintf("delete vocabulary term %s (%s)", o.Code, o.Vocabulary)
}

type DeleteTag struct {
	Code string `json:"code"`
}

func (o *DeleteTag) OperationKind() operation.Kind { return KindDeleteTags }
func (o *DeleteTag) Describe() string              { return fmt.Sprintf("delete tag %s", o.Code) }
