package unit_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polychat/internal/models"
	"polychat/internal/services"
	"polychat/internal/tests/mocks"
)

func TestSessionService_NewSession_UsesDefaultConfig(t *testing.T) {
	configs := &mocks.ModelConfigRepositoryMock{
		GetDefaultFunc: func() (*models.ModelConfig, error) {
			return &models.ModelConfig{ID: "cfg-default", IsDefault: true}, nil
		},
	}
	repo := mocks.NewMemorySessionRepository()
	svc := services.NewSessionService(repo, configs)

	sess, err := svc.NewSession("")
	require.NoError(t, err)
	assert.Equal(t, "cfg-default", sess.ConfigID)
	assert.Equal(t, "New Chat", sess.Title)
	assert.NotEmpty(t, sess.ID)

	stored, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestSessionService_NewSession_NoDefault(t *testing.T) {
	svc := services.NewSessionService(mocks.NewMemorySessionRepository(), &mocks.ModelConfigRepositoryMock{})

	_, err := svc.NewSession("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no default config")
}

func TestSessionService_NewSession_ExplicitConfig(t *testing.T) {
	configs := &mocks.ModelConfigRepositoryMock{
		GetByIDFunc: func(id string) (*models.ModelConfig, error) {
			if id == "cfg-9" {
				return &models.ModelConfig{ID: id}, nil
			}
			return nil, nil
		},
	}
	svc := services.NewSessionService(mocks.NewMemorySessionRepository(), configs)

	sess, err := svc.NewSession("cfg-9")
	require.NoError(t, err)
	assert.Equal(t, "cfg-9", sess.ConfigID)

	_, err = svc.NewSession("cfg-missing")
	assert.True(t, services.IsNotFound(err))
}

func TestSessionService_GetAndDelete(t *testing.T) {
	repo := mocks.NewMemorySessionRepository()
	svc := services.NewSessionService(repo, &mocks.ModelConfigRepositoryMock{})

	sess := models.NewChatSession("cfg-1", "New Chat")
	require.NoError(t, repo.Create(sess))

	got, err := svc.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = svc.Get("missing")
	assert.True(t, services.IsNotFound(err))
	_, err = svc.Get("")
	assert.Error(t, err)

	require.NoError(t, svc.Delete(sess.ID))
	_, err = svc.Get(sess.ID)
	assert.True(t, services.IsNotFound(err))
}

func TestSessionService_Rename(t *testing.T) {
	repo := mocks.NewMemorySessionRepository()
	svc := services.NewSessionService(repo, &mocks.ModelConfigRepositoryMock{})

	sess := models.NewChatSession("cfg-1", "New Chat")
	require.NoError(t, repo.Create(sess))

	require.NoError(t, svc.Rename(sess.ID, "  Trip planning  "))
	got, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", got.Title)

	assert.Error(t, svc.Rename(sess.ID, "   "))
}
