package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jalrakshak-monitor/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetComplaint(t *testing.T) {
	db := openTestDB(t)

	created, err := db.CreateComplaint(models.NewComplaint{
		Type:       models.TypePipeBurst,
		Location:   "  Ward C  ",
		OwnerEmail: "citizen@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusOpen, created.Status)
	assert.Equal(t, "Ward C", created.Location)

	got, err := db.GetComplaint(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.TypePipeBurst, got.Type)
	assert.Equal(t, "citizen@example.com", got.OwnerEmail)
	assert.Empty(t, got.AdminResponse)
}

func TestCreateComplaintKeepsSuppliedCreatedAt(t *testing.T) {
	db := openTestDB(t)

	when := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	created, err := db.CreateComplaint(models.NewComplaint{Type: models.TypeOther, Location: "Ward D", CreatedAt: &when})
	require.NoError(t, err)
	assert.True(t, when.Equal(created.CreatedAt))

	got, err := db.GetComplaint(created.ID)
	require.NoError(t, err)
	assert.True(t, when.Equal(got.CreatedAt), "got %v", got.CreatedAt)
}

func TestGetComplaintNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetComplaint("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListComplaintsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	n, err := db.SeedComplaints(models.SeedComplaints(now))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// seeding again keeps existing rows
	n, err = db.SeedComplaints(models.SeedComplaints(now))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	list, err := db.ListComplaints(ComplaintQuery{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"1", "3", "2"}, []string{list[0].ID, list[1].ID, list[2].ID})

	open, err := db.ListComplaints(ComplaintQuery{Status: models.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	page, err := db.ListComplaints(ComplaintQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "3", page[0].ID)
}

func TestUpdateComplaintStatus(t *testing.T) {
	db := openTestDB(t)
	_, err := db.SeedComplaints(models.SeedComplaints(time.Now().UTC()))
	require.NoError(t, err)

	response := "crew dispatched"
	got, err := db.UpdateComplaintStatus("2", models.StatusUpdate{Status: models.StatusInProgress, AdminResponse: &response})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, "crew dispatched", got.AdminResponse)

	// a nil response keeps the stored one
	got, err = db.UpdateComplaintStatus("2", models.StatusUpdate{Status: models.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, "crew dispatched", got.AdminResponse)

	_, err = db.UpdateComplaintStatus("nope", models.StatusUpdate{Status: models.StatusResolved})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	_, err := db.SeedComplaints(models.SeedComplaints(time.Now().UTC()))
	require.NoError(t, err)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["total_complaints"])
	assert.Equal(t, int64(2), stats["open"])
	assert.Equal(t, int64(1), stats["in_progress"])
	assert.Equal(t, int64(0), stats["resolved"])
}

func TestSnapshotStore(t *testing.T) {
	db := openTestDB(t)
	store := NewSnapshotStore(db, "", nil)

	_, ok := store.Load()
	assert.False(t, ok)

	records := models.SeedComplaints(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	records[1].Sync = models.SyncLocal
	store.Save(records)

	loaded, ok := store.Load()
	require.True(t, ok)
	require.Len(t, loaded, 3)
	assert.Equal(t, "1", loaded[0].ID)
	assert.Equal(t, models.SyncLocal, loaded[1].Sync)
	assert.True(t, records[2].CreatedAt.Equal(loaded[2].CreatedAt))

	store.Save(records[:1])
	loaded, ok = store.Load()
	require.True(t, ok)
	assert.Len(t, loaded, 1)

	// an empty collection is still a saved snapshot
	store.Save(nil)
	loaded, ok = store.Load()
	assert.True(t, ok)
	assert.Empty(t, loaded)
}

func TestSnapshotStoresAreIndependent(t *testing.T) {
	db := openTestDB(t)
	a := NewSnapshotStore(db, "a", nil)
	b := NewSnapshotStore(db, "b", nil)

	a.Save(models.SeedComplaints(time.Now().UTC()))
	_, ok := b.Load()
	assert.False(t, ok)
}
