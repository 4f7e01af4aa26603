package manager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberismoCom/cyberismo-core/internal/command"
	"github.com/CyberismoCom/cyberismo-core/internal/resource"
	"github.com/CyberismoCom/cyberismo-core/pkg/manager"
)

func TestCreateCardReturnsKeys(t *testing.T) {
	m, _ := fixture(t)
	resp := m.CreateCard(context.Background(), "bat/templates/simple", "")
	require.Equal(t, manager.StatusOK, resp.StatusCode)
	keys, ok := resp.Payload.([]string)
	require.True(t, ok)
	assert.NotEmpty(t, keys)
}

func TestCreateCardUnknownTemplateIsBadRequest(t *testing.T) {
	m, _ := fixture(t)
	resp := m.CreateCard(context.Background(), "bat/templates/nosuch", "")
	assert.Equal(t, manager.StatusBadRequest, resp.StatusCode)
}

func TestEditCardMetadataThenTransition(t *testing.T) {
	m, _ := fixture(t)
	created := m.CreateCard(context.Background(), "bat/templates/simple", "")
	require.Equal(t, manager.StatusOK, created.StatusCode)
	key := created.Payload.([]string)[0]

	edit := m.EditCardMetadata(context.Background(), key, "priority", "high")
	require.Equal(t, manager.StatusNoContent, edit.StatusCode)

	transition := m.TransitionCard(context.Background(), key, "Approve")
	require.Equal(t, manager.StatusNoContent, transition.StatusCode)

	// Approving again is a no-op success: the card is already in the
	// transition's toState.
	again := m.TransitionCard(context.Background(), key, "Approve")
	assert.Equal(t, manager.StatusNoContent, again.StatusCode)

	unknown := m.TransitionCard(context.Background(), key, "NoSuchTransition")
	assert.Equal(t, manager.StatusBadRequest, unknown.StatusCode)
}

func TestRemoveResourceRejectedWhenInUse(t *testing.T) {
	m, _ := fixture(t)
	created := m.CreateCard(context.Background(), "bat/templates/simple", "")
	require.Equal(t, manager.StatusOK, created.StatusCode)

	resp := m.Remove(context.Background(), resource.CardType, "task", "")
	assert.Equal(t, manager.StatusBadRequest, resp.StatusCode)
}

func TestCreateAttachmentsPartialSuccess(t *testing.T) {
	m, _ := fixture(t)
	created := m.CreateCard(context.Background(), "bat/templates/simple", "")
	require.Equal(t, manager.StatusOK, created.StatusCode)
	key := created.Payload.([]string)[0]

	resp := m.CreateAttachments(context.Background(), key, map[string][]byte{
		"notes.txt": []byte("hello"),
	})
	require.Equal(t, manager.StatusOK, resp.StatusCode)
	result, ok := resp.Payload.(command.AttachmentResult)
	require.True(t, ok)
	assert.Equal(t, []string{"notes.txt"}, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestUpdateSchemaRunsDefaultChain(t *testing.T) {
	m, _ := fixture(t)
	resp := m.UpdateSchema(context.Background(), "")
	require.Equal(t, manager.StatusNoContent, resp.StatusCode)
}
