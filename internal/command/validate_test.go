package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProjectCleanHasNoViolations(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	ctx := context.Background()
	_, err := cmds.CreateCard(ctx, "bat/templates/simple", "")
	require.NoError(t, err)

	violations, err := cmds.ValidateProject()
	require.NoError(t, err)
	assert.Empty(t, violations)
}

type stubMigrationRunner struct {
	target string
	called bool
	err    error
}

func (s *stubMigrationRunner) Migrate(_ context.Context, targetVersion string) error {
	s.called = true
	s.target = targetVersion
	return s.err
}

func TestUpdateSchemaRequiresMigrator(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	err := cmds.UpdateSchema(context.Background(), "1.1")
	require.Error(t, err)
}

func TestUpdateSchemaDelegatesToMigrator(t *testing.T) {
	cmds, _, _, _, _, _ := fixture(t)
	runner := &stubMigrationRunner{}
	cmds.SetMigrationRunner(runner)

	require.NoError(t, cmds.UpdateSchema(context.Background(), "1.1"))
	assert.True(t, runner.called)
	assert.Equal(t, "1.1", runner.target)
}
