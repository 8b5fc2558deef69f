package entity

import (
	"context"
	"fmt"

	"github.com/tracelab/opexec/pkg/operation"
)

// RegisterAll binds every entity kind to its payload factory and handler.
func RegisterAll(reg *operation.Registry) {
	reg.Register(KindCreateSpaces, func() operation.Operation { return &CreateSpace{} }, handler(createSpace))
	reg.Register(KindCreateProjects, func() operation.Operation { return &CreateProject{} }, handler(createProject))
	reg.Register(KindCreateExperiments, func() operation.Operation { return &CreateExperiment{} }, handler(createExperiment))
	reg.Register(KindCreateSamples, func() operation.Operation { return &CreateSample{} }, handler(createSample))
	reg.Register(KindCreateDataSets, func() operation.Operation { return &CreateDataSet{} }, handler(createDataSet))
	reg.Register(KindCreateMaterials, func() operation.Operation { return &CreateMaterial{} }, handler(createMaterial))
	reg.Register(KindCreateVocabularies, func() operation.Operation { return &CreateVocabulary{} }, handler(createVocabulary))
	reg.Register(KindCreateVocabularyTerms, func() operation.Operation { return &CreateVocabularyTerm{} }, handler(createVocabularyTerm))
	reg.Register(KindCreateTags, func() operation.Operation { return &CreateTag{} }, handler(createTag))

	reg.Register(KindUpdateSpaces, func() operation.Operation { return &UpdateSpace{} }, handler(updateSpace))
	reg.Register(KindUpdateProjects, func() operation.Operation { return &UpdateProject{} }, handler(updateProject))
	reg.Register(KindUpdateExperiments, func() operation.Operation { return &UpdateExperiment{} }, handler(updateExperiment))
	reg.Register(KindUpdateSamples, func() operation.Operation { return &UpdateSample{} }, handler(updateSample))
	reg.Register(KindUpdateDataSets, func() operation.Operation { return &UpdateDataSet{} }, handler(updateDataSet))
	reg.Register(KindUpdateMaterials, func() operation.Operation { return &UpdateMaterial{} }, handler(updateMaterial))
	reg.Register(KindUpdateVocabularies, func() operation.Operation { return &UpdateVocabulary{} }, handler(updateVocabulary))
	reg.Register(KindUpdateVocabularyTerms, func() operation.Operation { return &UpdateVocabularyTerm{} }, handler(updateVocabularyTerm))
	reg.Register(KindUpdateTags, func() operation.Operation { return &UpdateTag{} }, handler(updateTag))

	reg.Register(KindDeleteSpaces, func() operation.Operation { return &DeleteSpace{} }, handler(deleteSpace))
	reg.Register(KindDeleteProjects, func() operation.Operation { return &DeleteProject{} }, handler(deleteProject))
	reg.Register(KindDeleteExperiments, func() operation.Operation { return &DeleteExperiment{} }, handler(deleteExperiment))
	reg.Register(KindDeleteSamples, func() operation.Operation { return &DeleteSample{} }, handler(deleteSample))
	reg.Register(KindDeleteDataSets, func() operation.Operation { return &DeleteDataSet{} }, handler(deleteDataSet))
	reg.Register(KindDeleteMaterials, func() operation.Operation { return &DeleteMaterial{} }, handler(deleteMaterial))
	reg.Register(KindDeleteVocabularies, func() operation.Operation { return &DeleteVocabulary{} }, handler(deleteVocabulary))
	reg.Register(KindDeleteVocabularyTerms, func() operation.Operation { return &DeleteVocabularyTerm{} }, handler(deleteVocabularyTerm))
	reg.Register(KindDeleteTags, func() operation.Operation { return &DeleteTag{} }, handler(deleteTag))
}

// handlerFn is one typed entity handler working directly on the transaction's
// world snapshot.
type handlerFn[T operation.Operation] func(w *world, op T, refs operation.ResolvedRefs) (operation.Result, error)

// handler adapts a typed handler to the engine's Handler interface,
// extracting the world from the unit of work and asserting the payload type.
func handler[T operation.Operation](fn handlerFn[T]) operation.Handler {
	return operation.HandlerFunc(func(_ context.Context, uow operation.UnitOfWork, op operation.Operation, refs operation.ResolvedRefs) (operation.Result, error) {
		txn, ok := uow.(*Txn)
		if !ok {
			return operation.Result{}, fmt.Errorf("unit of work is %T, want *entity.Txn", uow)
		}
		typed, ok := op.(T)
		if !ok {
			return operation.Result{}, invalidf("payload is %T", op)
		}
		return fn(txn.w, typed, refs)
	})
}

func invalidf(format string, args ...any) error {
	return &operation.ValidationError{Index: -1, Message: fmt.Sprintf(format, args...)}
}

func createSpace(w *world, op *CreateSpace, _ operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("space code is required")
	}
	if _, dup := w.spaces[op.Code]; dup {
		return operation.Result{}, invalidf("space %s already exists", op.Code)
	}
	w.spaces[op.Code] = &Space{Code: op.Code, Description: op.Description}
	return operation.Result{Kind: KindCreateSpaces, ObjectID: op.Code}, nil
}

func createProject(w *world, op *CreateProject, refs operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("project code is required")
	}
	space := resolved(refs, op.SpaceToken, op.Space)
	if space == "" {
		return operation.Result{}, invalidf("project %s: space is required", op.Code)
	}
	if _, ok := w.spaces[space]; !ok {
		return operation.Result{}, invalidf("project %s: space %s does not exist", op.Code, space)
	}
	p := &Project{Code: op.Code, Space: space, Description: op.Description}
	id := p.Identifier()
	if _, dup := w.projects[id]; dup {
		return operation.Result{}, invalidf("project %s already exists", id)
	}
	w.projects[id] = p
	return operation.Result{Kind: KindCreateProjects, ObjectID: id}, nil
}

func createExperiment(w *world, op *CreateExperiment, refs operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("experiment code is required")
	}
	project := resolved(refs, op.ProjectToken, op.Project)
	if _, ok := w.projects[project]; !ok {
		return operation.Result{}, invalidf("experiment %s: project %s does not exist", op.Code, project)
	}
	e := &Experiment{Code: op.Code, Project: project, Type: op.Type, Properties: cloneProps(op.Properties)}
	id := e.Identifier()
	if _, dup := w.experiments[id]; dup {
		return operation.Result{}, invalidf("experiment %s already exists", id)
	}
	w.experiments[id] = e
	return operation.Result{Kind: KindCreateExperiments, ObjectID: id}, nil
}

func createSample(w *world, op *CreateSample, refs operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("sample code is required")
	}
	space := resolved(refs, op.SpaceToken, op.Space)
	if _, ok := w.spaces[space]; !ok {
		return operation.Result{}, invalidf("sample %s: space %s does not exist", op.Code, space)
	}
	experiment := resolved(refs, op.ExperimentToken, op.Experiment)
	if experiment != "" {
		if _, ok := w.experiments[experiment]; !ok {
			return operation.Result{}, invalidf("sample %s: experiment %s does not exist", op.Code, experiment)
		}
	}

	parents := append([]string(nil), op.Parents...)
	for _, token := range op.ParentTokens {
		if token != "" {
			parents = append(parents, refs[token])
		}
	}
	for _, parent := range parents {
		if _, ok := w.samples[parent]; !ok {
			return operation.Result{}, invalidf("sample %s: parent %s does not exist", op.Code, parent)
		}
	}

	s := &Sample{
		Code:       op.Code,
		Space:      space,
		Experiment: experiment,
		Type:       op.Type,
		Properties: cloneProps(op.Properties),
		Parents:    parents,
		Tags:       append([]string(nil), op.Tags...),
	}
	id := s.Identifier()
	if _, dup := w.samples[id]; dup {
		return operation.Result{}, invalidf("sample %s already exists", id)
	}
	w.samples[id] = s
	return operation.Result{Kind: KindCreateSamples, ObjectID: id}, nil
}

func createDataSet(w *world, op *CreateDataSet, refs operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("dataset code is required")
	}
	if _, dup := w.datasets[op.Code]; dup {
		return operation.Result{}, invalidf("dataset %s already exists", op.Code)
	}
	experiment := resolved(refs, op.ExperimentToken, op.Experiment)
	sample := resolved(refs, op.SampleToken, op.Sample)
	if experiment == "" && sample == "" {
		return operation.Result{}, invalidf("dataset %s: an experiment or a sample is required", op.Code)
	}
	if experiment != "" {
		if _, ok := w.experiments[experiment]; !ok {
			return operation.Result{}, invalidf("dataset %s: experiment %s does not exist", op.Code, experiment)
		}
	}
	if sample != "" {
		if _, ok := w.samples[sample]; !ok {
			return operation.Result{}, invalidf("dataset %s: sample %s does not exist", op.Code, sample)
		}
	}
	w.datasets[op.Code] = &DataSet{
		Code:       op.Code,
		Type:       op.Type,
		Experiment: experiment,
		Sample:     sample,
		Properties: cloneProps(op.Properties),
	}
	return operation.Result{Kind: KindCreateDataSets, ObjectID: op.Code}, nil
}

func createMaterial(w *world, op *CreateMaterial, _ operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" || op.Type == "" {
		return operation.Result{}, invalidf("material code and type are required")
	}
	m := &Material{Code: op.Code, Type: op.Type, Properties: cloneProps(op.Properties)}
	id := m.Identifier()
	if _, dup := w.materials[id]; dup {
		return operation.Result{}, invalidf("material %s already exists", id)
	}
	w.materials[id] = m
	return operation.Result{Kind: KindCreateMaterials, ObjectID: id}, nil
}

func createVocabulary(w *world, op *CreateVocabulary, _ operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("vocabulary code is required")
	}
	if _, dup := w.vocabularies[op.Code]; dup {
		return operation.Result{}, invalidf("vocabulary %s already exists", op.Code)
	}
	v := &Vocabulary{Code: op.Code, Description: op.Description}
	for _, term := range op.Terms {
		term.Vocabulary = op.Code
		v.Terms = append(v.Terms, term)
	}
	w.vocabularies[op.Code] = v
	return operation.Result{Kind: KindCreateVocabularies, ObjectID: op.Code}, nil
}

func createVocabularyTerm(w *world, op *CreateVocabularyTerm, refs operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("vocabulary term code is required")
	}
	vocab := resolved(refs, op.VocabularyToken, op.Vocabulary)
	v, ok := w.vocabularies[vocab]
	if !ok {
		return operation.Result{}, invalidf("term %s: vocabulary %s does not exist", op.Code, vocab)
	}
	for _, term := range v.Terms {
		if term.Code == op.Code {
			return operation.Result{}, invalidf("term %s already exists in vocabulary %s", op.Code, vocab)
		}
	}
	term := VocabularyTerm{Code: op.Code, Vocabulary: vocab, Label: op.Label}
	v.Terms = append(v.Terms, term)
	return operation.Result{Kind: KindCreateVocabularyTerms, ObjectID: term.Identifier()}, nil
}

func createTag(w *world, op *CreateTag, _ operation.ResolvedRefs) (operation.Result, error) {
	if op.Code == "" {
		return operation.Result{}, invalidf("tag code is required")
	}
	if _, dup := w.tags[op.Code]; dup {
		return operation.Result{}, invalidf("tag %s already exists", op.Code)
	}
	w.tags[op.Code] = &Tag{Code: op.Code, Description: op.Description}
	return operation.Result{Kind: KindCreateTags, ObjectID: op.Code}, nil
}

func updateSpace(w *world, op *UpdateSpace, _ operation.ResolvedRefs) (operation.Result, error) {
	s, ok := w.spaces[op.Code]
	if !ok {
		return operation.Result{}, invalidf("space %s does not exist", op.Code)
	}
	if op.Description != nil {
		s.Description = *op.Description
	}
	return operation.Result{Kind: KindUpdateSpaces, ObjectID: op.Code}, nil
}

func updateProject(w *world, op *UpdateProject, _ operation.ResolvedRefs) (operation.Result, error) {
	p, ok := w.projects[op.Project]
	if !ok {
		return operation.Result{}, invalidf("project %s does not exist", op.Project)
	}
	if op.Description != nil {
		p.Description = *op.Description
	}
	return operation.Result{Kind: KindUpdateProjects, ObjectID: op.Project}, nil
}

func updateExperiment(w *world, op *UpdateExperiment, _ operation.ResolvedRefs) (operation.Result, error) {
	e, ok := w.experiments[op.Experiment]
	if !ok {
		return operation.Result{}, invalidf("experiment %s does not exist", op.Experiment)
	}
	if op.Type != nil {
		e.Type = *op.Type
	}
	mergeProps(&e.Properties, op.Properties)
	return operation.Result{Kind: KindUpdateExperiments, ObjectID: op.Experiment}, nil
}

func updateSample(w *world, op *UpdateSample, _ operation.ResolvedRefs) (operation.Result, error) {
	s, ok := w.samples[op.Sample]
	if !ok {
		return operation.Result{}, invalidf("sample %s does not exist", op.Sample)
	}
	if op.Type != nil {
		s.Type = *op.Type
	}
	mergeProps(&s.Properties, op.Properties)

	for _, parent := range op.AddParents {
		if _, ok := w.samples[parent]; !ok {
			return operation.Result{}, invalidf("sample %s: parent %s does not exist", op.Sample, parent)
		}
		s.Parents = appendUnique(s.Parents, parent)
	}
	s.Parents = removeAll(s.Parents, op.RemoveParents)
	for _, tag := range op.AddTags {
		s.Tags = appendUnique(s.Tags, tag)
	}
	s.Tags = removeAll(s.Tags, op.RemoveTags)
	return operation.Result{Kind: KindUpdateSamples, ObjectID: op.Sample}, nil
}

func updateDataSet(w *world, op *UpdateDataSet, _ operation.ResolvedRefs) (operation.Result, error) {
	d, ok := w.datasets[op.Code]
	if !ok {
		return operation.Result{}, invalidf("dataset %s does not exist", op.Code)
	}
	mergeProps(&d.Properties, op.Properties)
	return operation.Result{Kind: KindUpdateDataSets, ObjectID: op.Code}, nil
}

func updateMaterial(w *world, op *UpdateMaterial, _ operation.ResolvedRefs) (operation.Result, error) {
	id := Material{Code: op.Code, Type: op.Type}.Identifier()
	m, ok := w.materials[id]
	if !ok {
		return operation.Result{}, invalidf("material %s does not exist", id)
	}
	mergeProps(&m.Properties, op.Properties)
	return operation.Result{Kind: KindUpdateMaterials, ObjectID: id}, nil
}

func updateVocabulary(w *world, op *UpdateVocabulary, _ operation.ResolvedRefs) (operation.Result, error) {
	v, ok := w.vocabularies[op.Code]
	if !ok {
		return operation.Result{}, invalidf("vocabulary %s does not exist", op.Code)
	}
	if op.Description != nil {
		v.Description = *op.Description
	}
	return operation.Result{Kind: KindUpdateVocabularies, ObjectID: op.Code}, nil
}

func updateVocabularyTerm(w *world, op *UpdateVocabularyTerm, _ operation.ResolvedRefs) (operation.Result, error) {
	v, ok := w.vocabularies[op.Vocabulary]
	if !ok {
		return operation.Result{}, invalidf("vocabulary %s does not exist", op.Vocabulary)
	}
	for i := range v.Terms {
		if v.Terms[i].Code == op.Code {
			if op.Label != nil {
				v.Terms[i].Label = *op.Label
			}
			return operation.Result{Kind: KindUpdateVocabularyTerms, ObjectID: v.Terms[i].Identifier()}, nil
		}
	}
	return operation.Result{}, invalidf("term %s does not exist in vocabulary %s", op.Code, op.Vocabulary)
}

func updateTag(w *world, op *UpdateTag, _ operation.ResolvedRefs) (operation.Result, error) {
	t, ok := w.tags[op.Code]
	if !ok {
		return operation.Result{}, invalidf("tag %s does not exist", op.Code)
	}
	if op.Description != nil {
		t.Description = *op.Description
	}
	return operation.Result{Kind: KindUpdateTags, ObjectID: op.Code}, nil
}

func deleteSpace(w *world, op *DeleteSpace, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.spaces[op.Code]; !ok {
		return operation.Result{}, invalidf("space %s does not exist", op.Code)
	}
	for _, p := range w.projects {
		if p.Space == op.Code {
			return operation.Result{}, invalidf("space %s still contains project %s", op.Code, p.Identifier())
		}
	}
	for _, s := range w.samples {
		if s.Space == op.Code {
			return operation.Result{}, invalidf("space %s still contains sample %s", op.Code, s.Identifier())
		}
	}
	delete(w.spaces, op.Code)
	return operation.Result{Kind: KindDeleteSpaces, ObjectID: op.Code}, nil
}

func deleteProject(w *world, op *DeleteProject, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.projects[op.Project]; !ok {
		return operation.Result{}, invalidf("project %s does not exist", op.Project)
	}
	for _, e := range w.experiments {
		if e.Project == op.Project {
			return operation.Result{}, invalidf("project %s still contains experiment %s", op.Project, e.Identifier())
		}
	}
	delete(w.projects, op.Project)
	return operation.Result{Kind: KindDeleteProjects, ObjectID: op.Project}, nil
}

func deleteExperiment(w *world, op *DeleteExperiment, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.experiments[op.Experiment]; !ok {
		return operation.Result{}, invalidf("experiment %s does not exist", op.Experiment)
	}
	for _, d := range w.datasets {
		if d.Experiment == op.Experiment {
			return operation.Result{}, invalidf("experiment %s still has dataset %s", op.Experiment, d.Code)
		}
	}
	delete(w.experiments, op.Experiment)
	return operation.Result{Kind: KindDeleteExperiments, ObjectID: op.Experiment}, nil
}

func deleteSample(w *world, op *DeleteSample, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.samples[op.Sample]; !ok {
		return operation.Result{}, invalidf("sample %s does not exist", op.Sample)
	}
	for _, d := range w.datasets {
		if d.Sample == op.Sample {
			return operation.Result{}, invalidf("sample %s still has dataset %s", op.Sample, d.Code)
		}
	}
	delete(w.samples, op.Sample)
	// Detach from children.
	for _, s := range w.samples {
		s.Parents = removeAll(s.Parents, []string{op.Sample})
	}
	return operation.Result{Kind: KindDeleteSamples, ObjectID: op.Sample}, nil
}

func deleteDataSet(w *world, op *DeleteDataSet, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.datasets[op.Code]; !ok {
		return operation.Result{}, invalidf("dataset %s does not exist", op.Code)
	}
	delete(w.datasets, op.Code)
	return operation.Result{Kind: KindDeleteDataSets, ObjectID: op.Code}, nil
}

func deleteMaterial(w *world, op *DeleteMaterial, _ operation.ResolvedRefs) (operation.Result, error) {
	id := Material{Code: op.Code, Type: op.Type}.Identifier()
	if _, ok := w.materials[id]; !ok {
		return operation.Result{}, invalidf("material %s does not exist", id)
	}
	delete(w.materials, id)
	return operation.Result{Kind: KindDeleteMaterials, ObjectID: id}, nil
}

func deleteVocabulary(w *world, op *DeleteVocabulary, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.vocabularies[op.Code]; !ok {
		return operation.Result{}, invalidf("vocabulary %s does not exist", op.Code)
	}
	delete(w.vocabularies, op.Code)
	return operation.Result{Kind: KindDeleteVocabularies, ObjectID: op.Code}, nil
}

func deleteVocabularyTerm(w *world, op *DeleteVocabularyTerm, _ operation.ResolvedRefs) (operation.Result, error) {
	v, ok := w.vocabularies[op.Vocabulary]
	if !ok {
		return operation.Result{}, invalidf("vocabulary %s does not exist", op.Vocabulary)
	}
	for i := range v.Terms {
		if v.Terms[i].Code == op.Code {
			id := v.Terms[i].Identifier()
			v.Terms = append(v.Terms[:i], v.Terms[i+1:]...)
			return operation.Result{Kind: KindDeleteVocabularyTerms, ObjectID: id}, nil
		}
	}
	return operation.Result{}, invalidf("term %s does not exist in vocabulary %s", op.Code, op.Vocabulary)
}

func deleteTag(w *world, op *DeleteTag, _ operation.ResolvedRefs) (operation.Result, error) {
	if _, ok := w.tags[op.Code]; !ok {
		return operation.Result{}, invalidf("tag %s does not exist", op.Code)
	}
	delete(w.tags, op.Code)
	return operation.Result{Kind: KindDeleteTags, ObjectID: op.Code}, nil
}

func mergeProps(dst *map[string]string, patch map[string]string) {
	if len(patch) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string]string, len(patch))
	}
	for k, v := range patch {
		(*dst)[k] = v
	}
}

func appendUnique(in []string, v string) []string {
	for _, existing := range in {
		if existing == v {
			return in
		}
	}
	return append(in, v)
}

func removeAll(in []string, remove []string) []string {
	if len(remove) == 0 {
		return in
	}
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	out := in[:0]
	for _, v := range in {
		if _, gone := drop[v]; !gone {
			out = append(out, v)
		}
	}
	return out
}
