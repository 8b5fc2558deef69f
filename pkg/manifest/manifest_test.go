package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelab/opexec/pkg/entity"
	"github.com/tracelab/opexec/pkg/operation"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndDecode(t *testing.T) {
	path := writeManifest(t, `
execution_id: import-2026-08
owner: alice
description: monthly import
details_seconds: 3600
operations:
  - kind: create-spaces
    payload:
      code: LAB
      token: $lab
  - kind: create-samples
    payload:
      code: S1
      space_token: $lab
      properties:
        organism: HUMAN
  - kind: update-spaces
    payload:
      code: LAB
      description: imported
`)

	batch, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "import-2026-08", batch.ExecutionID)
	assert.Equal(t, "alice", batch.Owner)
	require.NotNil(t, batch.DetailsSeconds)
	assert.Equal(t, 3600, *batch.DetailsSeconds)
	assert.Nil(t, batch.RecordSeconds)

	opts := batch.Options()
	assert.Equal(t, "import-2026-08", opts.ExecutionID)
	assert.Equal(t, 3600, *opts.DetailsTime)

	registry := operation.NewRegistry()
	entity.RegisterAll(registry)
	ops, err := batch.Decode(registry)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	space, ok := ops[0].(*entity.CreateSpace)
	require.True(t, ok)
	assert.Equal(t, "LAB", space.Code)
	assert.Equal(t, operation.TokenRef("$lab"), space.Token)

	sample, ok := ops[1].(*entity.CreateSample)
	require.True(t, ok)
	assert.Equal(t, operation.TokenRef("$lab"), sample.SpaceToken)
	assert.Equal(t, "HUMAN", sample.Properties["organism"])
}

func TestLoadRejectsEmptyOperations(t *testing.T) {
	path := writeManifest(t, "owner: alice\noperations: []\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid manifest")
}

func TestLoadRejectsMissingKind(t *testing.T) {
	path := writeManifest(t, `
operations:
  - payload:
      code: LAB
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	path := writeManifest(t, `
operations:
  - kind: teleport-samples
    payload:
      code: S1
`)
	batch, err := Load(path)
	require.NoError(t, err)

	registry := operation.NewRegistry()
	entity.RegisterAll(registry)
	_, err = batch.Decode(registry)
	var ve *operation.ValidationError
	require.ErrorAs(t, err, &ve)
}
