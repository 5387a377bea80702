package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"polychat/internal/database"
	"polychat/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	return db
}

func newConfig(name string) *models.ModelConfig {
	return &models.ModelConfig{
		ID:        uuid.NewString(),
		Name:      name,
		Provider:  models.ProviderOpenAI,
		APIURL:    "https://api.example.com/v1",
		ModelName: "gpt-test",
		APIKey:    "sk-test",
	}
}

func TestModelConfigRepository_CRUD(t *testing.T) {
	repo := NewModelConfigRepository(testDB(t))

	cfg := newConfig("work")
	require.NoError(t, repo.Create(cfg))

	got, err := repo.GetByID(cfg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "work", got.Name)

	byName, err := repo.GetByName("work")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, cfg.ID, byName.ID)

	got.ModelName = "gpt-other"
	require.NoError(t, repo.Update(got))
	got, err = repo.GetByID(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "gpt-other", got.ModelName)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Delete(cfg.ID))
	got, err = repo.GetByID(cfg.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestModelConfigRepository_MissingLookupsReturnNil(t *testing.T) {
	repo := NewModelConfigRepository(testDB(t))

	got, err := repo.GetByID(uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByName("nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetDefault()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestModelConfigRepository_UpdateMissing(t *testing.T) {
	repo := NewModelConfigRepository(testDB(t))
	err := repo.Update(newConfig("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModelConfigRepository_SetDefaultFlips(t *testing.T) {
	repo := NewModelConfigRepository(testDB(t))

	a := newConfig("a")
	b := newConfig("b")
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	require.NoError(t, repo.SetDefault(a.ID))
	def, err := repo.GetDefault()
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, a.ID, def.ID)

	require.NoError(t, repo.SetDefault(b.ID))
	def, err = repo.GetDefault()
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, b.ID, def.ID)

	// GetDefault uses Take and would error on duplicates; verify by count.
	configs, err := repo.List()
	require.NoError(t, err)
	defaults := 0
	for _, c := range configs {
		if c.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	assert.ErrorIs(t, repo.SetDefault(uuid.NewString()), ErrNotFound)
}

func TestModelConfigRepository_ListOrder(t *testing.T) {
	repo := NewModelConfigRepository(testDB(t))

	second := newConfig("second")
	two := 2
	second.SortOrder = &two
	first := newConfig("first")
	one := 1
	first.SortOrder = &one
	unsorted := newConfig("unsorted")

	require.NoError(t, repo.Create(second))
	require.NoError(t, repo.Create(first))
	require.NoError(t, repo.Create(unsorted))

	configs, err := repo.List()
	require.NoError(t, err)
	require.Len(t, configs, 3)
	assert.Equal(t, "first", configs[0].Name)
	assert.Equal(t, "second", configs[1].Name)
	// Configs without a sort order trail the explicitly ordered ones.
	assert.Equal(t, "unsorted", configs[2].Name)
}

func seedSession(t *testing.T, repo ChatSessionRepository, configID string) *models.ChatSession {
	t.Helper()
	sess := models.NewChatSession(configID, "New Chat")
	require.NoError(t, repo.Create(sess))
	return sess
}

func TestChatSessionRepository_MessageOrderAndUpsert(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))
	sess := seedSession(t, repo, uuid.NewString())

	user := models.NewMessage(sess.ID, models.RoleUser, "Hi!")
	assistant := models.NewMessage(sess.ID, models.RoleAssistant, "")
	assistant.IsStreaming = true
	require.NoError(t, repo.SaveMessage(sess.ID, user))
	require.NoError(t, repo.SaveMessage(sess.ID, assistant))

	// Checkpoint saves of the same id rewrite in place, never duplicate
	// or reorder.
	assistant.Content = "Hello"
	require.NoError(t, repo.SaveMessage(sess.ID, assistant))
	assistant.Content = "Hello there"
	assistant.IsStreaming = false
	require.NoError(t, repo.SaveMessage(sess.ID, assistant))

	got, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	msgs, err := got.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi!", msgs[0].Content)
	assert.Equal(t, "Hello there", msgs[1].Content)
	assert.False(t, msgs[1].IsStreaming)
}

func TestChatSessionRepository_DeleteAndReplaceMessages(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))
	sess := seedSession(t, repo, uuid.NewString())

	m1 := models.NewMessage(sess.ID, models.RoleUser, "one")
	m2 := models.NewMessage(sess.ID, models.RoleAssistant, "two")
	m3 := models.NewMessage(sess.ID, models.RoleUser, "three")
	for _, m := range []models.Message{m1, m2, m3} {
		require.NoError(t, repo.SaveMessage(sess.ID, m))
	}

	require.NoError(t, repo.DeleteMessage(sess.ID, m2.ID))
	// Deleting an id that is not there is a no-op.
	require.NoError(t, repo.DeleteMessage(sess.ID, uuid.NewString()))

	got, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	msgs, err := got.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[1].Content)

	require.NoError(t, repo.ReplaceMessages(sess.ID, []models.Message{m1}))
	got, err = repo.GetByID(sess.ID)
	require.NoError(t, err)
	msgs, err = got.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, repo.ReplaceMessages(sess.ID, nil))
	got, err = repo.GetByID(sess.ID)
	require.NoError(t, err)
	msgs, err = got.Messages()
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatSessionRepository_SessionIsolation(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))
	s1 := seedSession(t, repo, uuid.NewString())
	s2 := seedSession(t, repo, uuid.NewString())

	require.NoError(t, repo.SaveMessage(s1.ID, models.NewMessage(s1.ID, models.RoleUser, "for one")))
	require.NoError(t, repo.SaveMessage(s2.ID, models.NewMessage(s2.ID, models.RoleUser, "for two")))

	got, err := repo.GetByID(s2.ID)
	require.NoError(t, err)
	msgs, err := got.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for two", msgs[0].Content)
}

func TestChatSessionRepository_UpdatedAtSemantics(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))
	sess := seedSession(t, repo, uuid.NewString())

	before, err := repo.GetByID(sess.ID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Rename(sess.ID, "renamed"))
	require.NoError(t, repo.SwitchConfig(sess.ID, uuid.NewString()))

	after, err := repo.GetByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", after.Title)
	// Title and config changes do not count as activity.
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	require.NoError(t, repo.SaveMessage(sess.ID, models.NewMessage(sess.ID, models.RoleUser, "hi")))
	after, err = repo.GetByID(sess.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestChatSessionRepository_ListAllOrdersByActivity(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))
	older := seedSession(t, repo, uuid.NewString())
	newer := seedSession(t, repo, uuid.NewString())
	_ = newer

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.SaveMessage(older.ID, models.NewMessage(older.ID, models.RoleUser, "bump")))

	sessions, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, older.ID, sessions[0].ID)
}

func TestChatSessionRepository_MissingSession(t *testing.T) {
	repo := NewChatSessionRepository(testDB(t))

	got, err := repo.GetByID(uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.SaveMessage(uuid.NewString(), models.NewMessage("x", models.RoleUser, "hi"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Rename(uuid.NewString(), "t"), ErrNotFound)
}
