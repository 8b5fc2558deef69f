package entity

import (
	"fmt"

	"github.com/tracelab/opexec/pkg/operation"
)

// Create operations may mint a creation token other operations in the same
// batch reference, and may themselves reference tokens minted by earlier
// creates (a sample's parents, a project's space). Token fields and literal
// identifier fields are alternatives; the token wins when set.

type CreateSpace struct {
	Code        string             `json:"code"`
	Description string             `json:"description,omitempty"`
	Token       operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateSpace) OperationKind() operation.Kind     { return KindCreateSpaces }
func (o *CreateSpace) Describe() string                  { return fmt.Sprintf("create space %s", o.Code) }
func (o *CreateSpace) CreationToken() operation.TokenRef { return o.Token }

type CreateProject struct {
	Code        string             `json:"code"`
	Space       string             `json:"space,omitempty"`
	SpaceToken  operation.TokenRef `json:"space_token,omitempty"`
	Description string             `json:"description,omitempty"`
	Token       operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateProject) OperationKind() operation.Kind     { return KindCreateProjects }
func (o *CreateProject) Describe() string                  { return fmt.Sprintf("create project %s", o.Code) }
func (o *CreateProject) CreationToken() operation.TokenRef { return o.Token }
func (o *CreateProject) References() []operation.TokenRef  { return tokens(o.SpaceToken) }

type CreateExperiment struct {
	Code         string             `json:"code"`
	Project      string             `json:"project,omitempty"`
	ProjectToken operation.TokenRef `json:"project_token,omitempty"`
	Type         string             `json:"type,omitempty"`
	Properties   map[string]string  `json:"properties,omitempty"`
	Token        operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateExperiment) OperationKind() operation.Kind     { return KindCreateExperiments }
func (o *CreateExperiment) Describe() string                  { return fmt.Sprintf("create experiment %s", o.Code) }
func (o *CreateExperiment) CreationToken() operation.TokenRef { return o.Token }
func (o *CreateExperiment) References() []operation.TokenRef  { return tokens(o.ProjectToken) }

type CreateSample struct {
	Code            string               `json:"code"`
	Space           string               `json:"space,omitempty"`
	SpaceToken      operation.TokenRef   `json:"space_token,omitempty"`
	Experiment      string               `json:"experiment,omitempty"`
	ExperimentToken operation.TokenRef   `json:"experiment_token,omitempty"`
	Type            string               `json:"type,omitempty"`
	Properties      map[string]string    `json:"properties,omitempty"`
	Parents         []string             `json:"parents,omitempty"`
	ParentTokens    []operation.TokenRef `json:"parent_tokens,omitempty"`
	Tags            []string             `json:"tags,omitempty"`
	Token           operation.TokenRef   `json:"token,omitempty"`
}

func (o *CreateSample) OperationKind() operation.Kind     { return KindCreateSamples }
func (o *CreateSample) Describe() string                  { return fmt.Sprintf("create sample %s", o.Code) }
func (o *CreateSample) CreationToken() operation.TokenRef { return o.Token }

func (o *CreateSample) References() []operation.TokenRef {
	refs := tokens(o.SpaceToken, o.ExperimentToken)
	for _, t := range o.ParentTokens {
		if t != "" {
			refs = append(refs, t)
		}
	}
	return refs
}

type CreateDataSet struct {
	Code            string             `json:"code"`
	Type            string             `json:"type,omitempty"`
	Experiment      string             `json:"experiment,omitempty"`
	ExperimentToken operation.TokenRef `json:"experiment_token,omitempty"`
	Sample          string             `json:"sample,omitempty"`
	SampleToken     operation.TokenRef `json:"sample_token,omitempty"`
	Properties      map[string]string  `json:"properties,omitempty"`
	Token           operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateDataSet) OperationKind() operation.Kind     { return KindCreateDataSets }
func (o *CreateDataSet) Describe() string                  { return fmt.Sprintf("create dataset %s", o.Code) }
func (o *CreateDataSet) CreationToken() operation.TokenRef { return o.Token }
func (o *CreateDataSet) References() []operation.TokenRef {
	return tokens(o.ExperimentToken, o.SampleToken)
}

type CreateMaterial struct {
	Code       string             `json:"code"`
	Type       string             `json:"type"`
	Properties map[string]string  `json:"properties,omitempty"`
	Token      operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateMaterial) OperationKind() operation.Kind     { return KindCreateMaterials }
func (o *CreateMaterial) Describe() string                  { return fmt.Sprintf("create material %s", o.Code) }
func (o *CreateMaterial) CreationToken() operation.TokenRef { return o.Token }

type CreateVocabulary struct {
	Code        string             `json:"code"`
	Description string             `json:"description,omitempty"`
	Terms       []VocabularyTerm   `json:"terms,omitempty"`
	Token       operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateVocabulary) OperationKind() operation.Kind     { return KindCreateVocabularies }
func (o *CreateVocabulary) Describe() string                  { return fmt.Sprintf("create vocabulary %s", o.Code) }
func (o *CreateVocabulary) CreationToken() operation.TokenRef { return o.Token }

type CreateVocabularyTerm struct {
	Code            string             `json:"code"`
	Vocabulary      string             `json:"vocabulary,omitempty"`
	VocabularyToken operation.TokenRef `json:"vocabulary_token,omitempty"`
	Label           string             `json:"label,omitempty"`
	Token           operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateVocabularyTerm) OperationKind() operation.Kind { return KindCreateVocabularyTerms }
func (o *CreateVocabularyTerm) Describe() string {
	return fmt.Sprintf("create vocabulary term %s", o.Code)
}
func (o *CreateVocabularyTerm) CreationToken() operation.TokenRef { return o.Token }
func (o *CreateVocabularyTerm) References() []operation.TokenRef  { return tokens(o.VocabularyToken) }

type CreateTag struct {
	Code        string             `json:"code"`
	Description string             `json:"description,omitempty"`
	Token       operation.TokenRef `json:"token,omitempty"`
}

func (o *CreateTag) OperationKind() operation.Kind     { return KindCreateTags }
func (o *CreateTag) Describe() string                  { return fmt.Sprintf("create tag %s", o.Code) }
func (o *CreateTag) CreationToken() operation.TokenRef { return o.Token }

// tokens filters out unset token fields.
func tokens(in ...operation.TokenRef) []operation.TokenRef {
	var out []operation.TokenRef
	for _, t := range in {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// resolved picks the token binding when a token is set, else the literal
// identifier.
func resolved(refs operation.ResolvedRefs, token operation.TokenRef, literal string) string {
	if token != "" {
		return refs[token]
	}
	return literal
}
