package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/persistence"
)

func TestNewPersistence_StripsFileScheme(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence("file://" + dir)

	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
}

func TestProcessRepository_CRUD(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.Processes()
	ctx := t.Context()

	saved, err := repo.Save(ctx, &models.Process{Name: "Boiler Startup", XMLContent: "<definitions/>"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)
	assert.False(t, saved.UpdatedAt.IsZero())

	second, err := repo.Save(ctx, &models.Process{Name: "Shutdown", XMLContent: "<definitions/>"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	fetched, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boiler Startup", fetched.Name)

	fetched.Name = "Boiler Startup v2"
	updated, err := repo.Save(ctx, fetched)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)

	require.NoError(t, repo.Delete(ctx, saved.ID))

	_, err = repo.GetByID(ctx, saved.ID)
	assert.True(t, persistence.IsProcessNotFound(err))
}

func TestProcessRepository_GetByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Processes().GetByID(t.Context(), 42)
	require.Error(t, err)
	assert.True(t, persistence.IsProcessNotFound(err))
}

func TestProcessRepository_List_SessionStatus(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	running, err := p.Processes().Save(ctx, &models.Process{Name: "Running", XMLContent: "<x/>"})
	require.NoError(t, err)

	finished, err := p.Processes().Save(ctx, &models.Process{Name: "Finished", XMLContent: "<x/>"})
	require.NoError(t, err)

	_, err = p.Processes().Save(ctx, &models.Process{Name: "Idle", XMLContent: "<x/>"})
	require.NoError(t, err)

	session := models.NewSession(running.ID)
	require.NoError(t, p.Sessions().Put(ctx, session))

	done := models.NewSession(finished.ID)
	done.IsFinished = true
	require.NoError(t, p.Sessions().Put(ctx, done))

	summaries, err := p.Processes().List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	byName := make(map[string]models.SessionStatus, len(summaries))
	for _, s := range summaries {
		byName[s.Name] = s.SessionStatus
	}

	assert.Equal(t, models.SessionStatusRunning, byName["Running"])
	assert.Equal(t, models.SessionStatusFinished, byName["Finished"])
	assert.Equal(t, models.SessionStatusNone, byName["Idle"])
}

func TestProcessRepository_List_SkipsForeignFiles(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence(root)
	ctx := t.Context()

	_, err := p.Processes().Save(ctx, &models.Process{Name: "Real", XMLContent: "<x/>"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "processes", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "processes", "abc.json"), []byte("{}"), 0o644))

	summaries, err := p.Processes().List(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestProcessRepository_DeleteRemovesSession(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	process, err := p.Processes().Save(ctx, &models.Process{Name: "P", XMLContent: "<x/>"})
	require.NoError(t, err)

	require.NoError(t, p.Sessions().Put(ctx, models.NewSession(process.ID)))
	require.NoError(t, p.Processes().Delete(ctx, process.ID))

	_, err = p.Sessions().Get(ctx, process.ID)
	assert.True(t, persistence.IsSessionNotFound(err))
}

func TestSessionRepository_PutBumpsRevision(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	session := models.NewSession(1)
	require.NoError(t, p.Sessions().Put(ctx, session))
	assert.Equal(t, int64(1), session.Revision)
	assert.False(t, session.UpdatedAt.IsZero())

	session.Append(models.LogEntry{Time: "2024/05/06 07:08:09", Source: models.SourceUser, Message: "任務開始: Step", Value: models.NoValue})
	require.NoError(t, p.Sessions().Put(ctx, session))
	assert.Equal(t, int64(2), session.Revision)

	stored, err := p.Sessions().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Revision)
	assert.Len(t, stored.Log, 1)
}

func TestSessionRepository_RevisionConflict(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Sessions().Put(ctx, models.NewSession(1)))

	// A writer still holding the pre-insert revision loses.
	stale := models.NewSession(1)

	err := p.Sessions().Put(ctx, stale)
	require.Error(t, err)
	assert.True(t, persistence.IsRevisionConflict(err))

	// Two readers of the same revision race; the second write loses.
	first, err := p.Sessions().Get(ctx, 1)
	require.NoError(t, err)

	second, err := p.Sessions().Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, p.Sessions().Put(ctx, first))

	err = p.Sessions().Put(ctx, second)
	assert.True(t, persistence.IsRevisionConflict(err))
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Sessions().Get(t.Context(), 9)
	require.Error(t, err)
	assert.True(t, persistence.IsSessionNotFound(err))
}

func TestSessionRepository_DeleteIsIdempotent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.Sessions().Put(ctx, models.NewSession(1)))
	require.NoError(t, p.Sessions().Delete(ctx, 1))
	require.NoError(t, p.Sessions().Delete(ctx, 1))
}

func TestHeartbeatRepository_BeatAndSweep(t *testing.T) {
	repo := NewHeartbeatRepository()
	ctx := t.Context()

	base := time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)
	expiry := 30 * time.Second

	count, err := repo.Beat(ctx, 1, "viewer-a", base, expiry)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.Beat(ctx, 1, "viewer-b", base.Add(10*time.Second), expiry)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// At t+35s viewer-a (last seen t0) is out, viewer-b (t+10s) hangs on.
	count, err = repo.Beat(ctx, 1, "viewer-c", base.Add(35*time.Second), expiry)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.Sweep(ctx, base.Add(2*time.Minute), expiry))

	count, err = repo.Beat(ctx, 1, "viewer-d", base.Add(2*time.Minute), expiry)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHealthCheck_MissingRoot(t *testing.T) {
	p := NewPersistence(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, p.HealthCheck(t.Context()))
}
