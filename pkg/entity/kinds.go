package entity

import "github.com/tracelab/opexec/pkg/operation"

// The closed kind set served by this collaborator.
const (
	KindCreateSpaces          = operation.Kind("create-spaces")
	KindCreateProjects        = operation.Kind("create-projects")
	KindCreateExperiments     = operation.Kind("create-experiments")
	KindCreateSamples         = operation.Kind("create-samples")
	KindCreateDataSets        = operation.Kind("create-datasets")
	KindCreateMaterials       = operation.Kind("create-materials")
	KindCreateVocabularies    = operation.Kind("create-vocabularies")
	KindCreateVocabularyTerms = operation.Kind("create-vocabulary-terms")
	KindCreateTags            = operation.Kind("create-tags")

	KindUpdateSpaces          = operation.Kind("update-spaces")
	KindUpdateProjects        = operation.Kind("update-projects")
	KindUpdateExperiments     = operation.Kind("update-experiments")
	KindUpdateSamples         = operation.Kind("update-samples")
	KindUpdateDataSets        = operation.Kind("update-datasets")
	KindUpdateMaterials       = operation.Kind("update-materials")
	KindUpdateVocabularies    = operation.Kind("update-vocabularies")
	KindUpdateVocabularyTerms = operation.Kind("update-vocabulary-terms")
	KindUpdateTags            = operation.Kind("update-tags")

	KindDeleteSpaces          = operation.Kind("delete-spaces")
	KindDeleteProjects        = operation.Kind("delete-projects")
	KindDeleteExperiments     = operation.Kind("delete-experiments")
	KindDeleteSamples         = operation.Kind("delete-samples")
	KindDeleteDataSets        = operation.Kind("delete-datasets")
	KindDeleteMaterials       = operation.Kind("delete-materials")
	KindDeleteVocabularies    = operation.Kind("delete-vocabularies")
	KindDeleteVocabularyTerms = operation.Kind("delete-vocabulary-terms")
	KindDeleteTags            = operation.Kind("delete-tags")
)
