package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"photomap/internal/catalog"
)

// Integration tests for the catalog store with a real SQLite database

func setupTestDB(t testing.TB) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func createTestUser(t *testing.T, db *Database, name string) int64 {
	t.Helper()

	user, err := db.CreateUser(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", name, err)
	}
	return user.ID
}

var photoSeq atomic.Int64

func createTestPhoto(t *testing.T, db *Database, staged catalog.StagedFile) int64 {
	t.Helper()

	if staged.StoredFilename == "" {
		staged.StoredFilename = fmt.Sprintf("photo-%d.jpg", photoSeq.Add(1))
	}
	if staged.OriginalFilename == "" {
		staged.OriginalFilename = "original.jpg"
	}
	if staged.MimeType == "" {
		staged.MimeType = "image/jpeg"
	}

	id, err := db.CreatePhoto(context.Background(), staged)
	if err != nil {
		t.Fatalf("CreatePhoto failed: %v", err)
	}
	return id
}

func ptr[T any](v T) *T {
	return &v
}

func TestNewDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	version, err := db.GetMetadata(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("GetMetadata(schema_version) failed: %v", err)
	}
	if version != "1" {
		t.Errorf("schema_version = %q, want %q", version, "1")
	}
}

func TestNewDatabaseReopen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	id, err := db.CreatePhoto(ctx, catalog.StagedFile{StoredFilename: "a.jpg", OriginalFilename: "a.jpg", MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("CreatePhoto failed: %v", err)
	}
	db.Close()

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if _, err := db.GetPhoto(ctx, id); err != nil {
		t.Errorf("photo lost after reopen: %v", err)
	}
}

func TestNewDatabaseMissingDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "sub", "test.db"))
	if err == nil {
		t.Error("expected error for missing parent directory")
	}
}

func TestCreatePhotoRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	taken := time.Date(2023, 5, 14, 10, 30, 0, 0, time.UTC)

	staged := catalog.StagedFile{
		OwnerID:            &owner,
		StoredFilename:     "0f3a.jpg",
		OriginalFilename:   "42_beach.jpg",
		FileSize:           2048,
		MimeType:           "image/jpeg",
		DerivativeFilename: "medium/0f3a.jpg",
		Location:           &catalog.GeoPoint{Latitude: 48.8584, Longitude: -2.2945},
		TakenAt:            &taken,
	}

	id, err := db.CreatePhoto(ctx, staged)
	if err != nil {
		t.Fatalf("CreatePhoto failed: %v", err)
	}

	photo, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}

	if photo.OwnerID == nil || *photo.OwnerID != owner {
		t.Errorf("OwnerID = %v, want %d", photo.OwnerID, owner)
	}
	if photo.StoredFilename != staged.StoredFilename || photo.OriginalFilename != staged.OriginalFilename {
		t.Errorf("filenames = %q/%q", photo.StoredFilename, photo.OriginalFilename)
	}
	if photo.FileSize != 2048 || photo.MimeType != "image/jpeg" {
		t.Errorf("size/mime = %d/%q", photo.FileSize, photo.MimeType)
	}
	if photo.DerivativeFilename != "medium/0f3a.jpg" {
		t.Errorf("DerivativeFilename = %q", photo.DerivativeFilename)
	}
	if photo.Location == nil || *photo.Location != *staged.Location {
		t.Errorf("Location = %+v, want %+v", photo.Location, staged.Location)
	}
	if photo.TakenAt == nil || !photo.TakenAt.Equal(taken) {
		t.Errorf("TakenAt = %v, want %v", photo.TakenAt, taken)
	}
	if photo.UploadedAt.IsZero() || photo.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreatePhotoWithoutOptionalFields(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()

	id := createTestPhoto(t, db, catalog.StagedFile{})

	photo, err := db.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}
	if !photo.IsOrphaned() {
		t.Error("photo without owner should be orphaned")
	}
	if photo.Location != nil || photo.TakenAt != nil || photo.DerivativeFilename != "" {
		t.Errorf("optional fields should be empty: %+v", photo)
	}
}

func TestCreatePhotoDuplicateFilename(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "dup.jpg"})

	_, err := db.CreatePhoto(context.Background(), catalog.StagedFile{
		StoredFilename: "dup.jpg", OriginalFilename: "x.jpg", MimeType: "image/jpeg",
	})
	if !errors.Is(err, catalog.ErrPersistence) {
		t.Errorf("duplicate stored filename error = %v, want ErrPersistence", err)
	}
}

func TestCreatePhotoUnknownOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)

	_, err := db.CreatePhoto(context.Background(), catalog.StagedFile{
		OwnerID: ptr(int64(999)), StoredFilename: "a.jpg", OriginalFilename: "a.jpg", MimeType: "image/jpeg",
	})
	if err == nil {
		t.Fatal("expected foreign key error for unknown owner")
	}

	stats, err := db.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Photos != 0 {
		t.Errorf("Photos = %d after failed insert, want 0", stats.Photos)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)

	_, err := db.GetPhoto(context.Background(), 12345)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("GetPhoto error = %v, want ErrNotFound", err)
	}
}

func TestFindUserByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	id := createTestUser(t, db, "bob")

	user, err := db.FindUserByID(ctx, id)
	if err != nil {
		t.Fatalf("FindUserByID failed: %v", err)
	}
	if user == nil || user.Username != "bob" {
		t.Errorf("FindUserByID = %+v, want bob", user)
	}

	missing, err := db.FindUserByID(ctx, id+100)
	if err != nil {
		t.Fatalf("FindUserByID(missing) returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("FindUserByID(missing) = %+v, want nil", missing)
	}
}

func TestCreateUserValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateUser(ctx, "  "); err == nil {
		t.Error("expected error for blank username")
	}

	createTestUser(t, db, "carol")
	if _, err := db.CreateUser(ctx, "carol"); !errors.Is(err, catalog.ErrPersistence) {
		t.Errorf("duplicate username error = %v, want ErrPersistence", err)
	}
}

func TestDeleteUserOrphansPhotos(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "dave")
	rater := createTestUser(t, db, "erin")
	photoID := createTestPhoto(t, db, catalog.StagedFile{OwnerID: &owner})

	if err := db.UpsertRating(ctx, photoID, owner, 4); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	if err := db.UpsertRating(ctx, photoID, rater, 2); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}

	if err := db.DeleteUser(ctx, owner); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	photo, err := db.GetPhoto(ctx, photoID)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}
	if !photo.IsOrphaned() {
		t.Error("photo should be orphaned after owner deletion")
	}

	ratings, err := db.ListRatings(ctx, photoID)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(ratings) != 1 || ratings[0].UserID != rater {
		t.Errorf("ratings after owner deletion = %+v, want only erin's", ratings)
	}

	if err := db.DeleteUser(ctx, owner); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second DeleteUser error = %v, want ErrNotFound", err)
	}
}

func TestUpsertRating(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "frank")
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	if err := db.UpsertRating(ctx, photoID, user, 3); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	first, err := db.FindRating(ctx, photoID, user)
	if err != nil || first == nil {
		t.Fatalf("FindRating = %v, %v", first, err)
	}

	if err := db.UpsertRating(ctx, photoID, user, 5); err != nil {
		t.Fatalf("second UpsertRating failed: %v", err)
	}

	ratings, err := db.ListRatings(ctx, photoID)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("got %d ratings, want 1", len(ratings))
	}
	if ratings[0].Value != 5 {
		t.Errorf("Value = %d, want 5", ratings[0].Value)
	}
	if !ratings[0].CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on replace: %v -> %v", first.CreatedAt, ratings[0].CreatedAt)
	}
}

func TestUpsertRatingInvalid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "gina")
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	for _, value := range []int{0, 6, -3} {
		if err := db.UpsertRating(ctx, photoID, user, value); !errors.Is(err, catalog.ErrInvalidRating) {
			t.Errorf("UpsertRating(%d) error = %v, want ErrInvalidRating", value, err)
		}
	}

	if r, _ := db.FindRating(ctx, photoID, user); r != nil {
		t.Errorf("invalid rating was stored: %+v", r)
	}
}

func TestUpsertRatingUnknownPhoto(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	user := createTestUser(t, db, "hank")

	err := db.UpsertRating(context.Background(), 999, user, 4)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("UpsertRating(unknown photo) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRating(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "ivy")
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	if err := db.DeleteRating(ctx, photoID, user); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("DeleteRating(absent) error = %v, want ErrNotFound", err)
	}

	if err := db.UpsertRating(ctx, photoID, user, 2); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	if err := db.DeleteRating(ctx, photoID, user); err != nil {
		t.Fatalf("DeleteRating failed: %v", err)
	}

	if r, err := db.FindRating(ctx, photoID, user); err != nil || r != nil {
		t.Errorf("FindRating after delete = %+v, %v", r, err)
	}
}

func TestDeletePhotoCascadesRatings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "jack")
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	if err := db.UpsertRating(ctx, photoID, user, 5); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}

	if err := db.DeletePhoto(ctx, photoID); err != nil {
		t.Fatalf("DeletePhoto failed: %v", err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Photos != 0 || stats.Ratings != 0 {
		t.Errorf("stats after delete = %+v, want empty", stats)
	}

	if err := db.DeletePhoto(ctx, photoID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second DeletePhoto error = %v, want ErrNotFound", err)
	}
}

func TestListPhotosFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "kim")
	rater := createTestUser(t, db, "lee")

	day := func(d int) *time.Time {
		t := time.Date(2024, 3, d, 15, 0, 0, 0, time.UTC)
		return &t
	}
	geo := &catalog.GeoPoint{Latitude: 1, Longitude: 2}

	early := createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "early.jpg", OwnerID: &owner, TakenAt: day(1), Location: geo})
	mid := createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "mid.jpg", OwnerID: &owner, TakenAt: day(10)})
	late := createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "late.jpg", TakenAt: day(20), Location: geo})
	undated := createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "undated.jpg"})

	if err := db.UpsertRating(ctx, early, owner, 5); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRating(ctx, early, rater, 3); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertRating(ctx, mid, rater, 2); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter catalog.PhotoFilter
		want   []int64
	}{
		{"no filter", catalog.PhotoFilter{}, []int64{undated, late, mid, early}},
		{"taken from inclusive", catalog.PhotoFilter{TakenFrom: day(10)}, []int64{late, mid}},
		{"taken to whole day", catalog.PhotoFilter{TakenTo: ptr(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))}, []int64{mid, early}},
		{"taken range", catalog.PhotoFilter{TakenFrom: day(2), TakenTo: day(19)}, []int64{mid}},
		{"min rating", catalog.PhotoFilter{MinRating: ptr(3.5)}, []int64{early}},
		{"min rating excludes unrated", catalog.PhotoFilter{MinRating: ptr(1.0)}, []int64{mid, early}},
		{"has gps", catalog.PhotoFilter{HasGPS: ptr(true)}, []int64{late, early}},
		{"no gps", catalog.PhotoFilter{HasGPS: ptr(false)}, []int64{undated, mid}},
		{"owner", catalog.PhotoFilter{OwnerID: &owner}, []int64{mid, early}},
		{"orphaned", catalog.PhotoFilter{OrphanedOnly: true}, []int64{undated, late}},
		{"limit", catalog.PhotoFilter{Limit: 2}, []int64{undated, late}},
		{"offset", catalog.PhotoFilter{Limit: 2, Offset: 2}, []int64{mid, early}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			photos, err := db.ListPhotos(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListPhotos failed: %v", err)
			}

			var got []int64
			for _, p := range photos {
				got = append(got, p.ID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got ids %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got ids %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestReassignOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "mia")
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	if err := db.ReassignOwner(ctx, photoID, &owner); err != nil {
		t.Fatalf("ReassignOwner failed: %v", err)
	}
	photo, _ := db.GetPhoto(ctx, photoID)
	if photo.OwnerID == nil || *photo.OwnerID != owner {
		t.Errorf("OwnerID = %v, want %d", photo.OwnerID, owner)
	}

	if err := db.ReassignOwner(ctx, photoID, nil); err != nil {
		t.Fatalf("ReassignOwner(nil) failed: %v", err)
	}
	photo, _ = db.GetPhoto(ctx, photoID)
	if !photo.IsOrphaned() {
		t.Error("photo should be orphaned after clearing owner")
	}

	if err := db.ReassignOwner(ctx, photoID, ptr(int64(999))); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("ReassignOwner(unknown user) error = %v, want ErrNotFound", err)
	}
	if err := db.ReassignOwner(ctx, 999, &owner); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("ReassignOwner(unknown photo) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateDerivative(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	if err := db.UpdateDerivative(ctx, photoID, "medium/new.jpg"); err != nil {
		t.Fatalf("UpdateDerivative failed: %v", err)
	}
	photo, _ := db.GetPhoto(ctx, photoID)
	if photo.DerivativeFilename != "medium/new.jpg" {
		t.Errorf("DerivativeFilename = %q", photo.DerivativeFilename)
	}

	if err := db.UpdateDerivative(ctx, 999, "x.jpg"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("UpdateDerivative(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestGetStats(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "noah")

	p1 := createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "1.jpg", OwnerID: &owner, Location: &catalog.GeoPoint{Latitude: 10, Longitude: 20}})
	createTestPhoto(t, db, catalog.StagedFile{StoredFilename: "2.jpg"})
	if err := db.UpsertRating(ctx, p1, owner, 4); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	want := catalog.Stats{Photos: 2, OrphanedPhotos: 1, PhotosWithGPS: 1, Ratings: 1}
	if stats != want {
		t.Errorf("GetStats = %+v, want %+v", stats, want)
	}

	mstats, err := db.MetricsStats().GetStats(ctx)
	if err != nil {
		t.Fatalf("MetricsStats().GetStats failed: %v", err)
	}
	if mstats.Photos != 2 || mstats.Ratings != 1 {
		t.Errorf("metrics stats = %+v", mstats)
	}
}

func TestLastIntakeMetadata(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()

	last, err := db.GetLastIntake(ctx)
	if err != nil {
		t.Fatalf("GetLastIntake failed: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("GetLastIntake on fresh db = %v, want zero", last)
	}

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := db.SetLastIntake(ctx, now); err != nil {
		t.Fatalf("SetLastIntake failed: %v", err)
	}
	last, err = db.GetLastIntake(ctx)
	if err != nil {
		t.Fatalf("GetLastIntake failed: %v", err)
	}
	if !last.Equal(now) {
		t.Errorf("GetLastIntake = %v, want %v", last, now)
	}
}

func TestDatabaseConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	photoID := createTestPhoto(t, db, catalog.StagedFile{})

	users := make([]int64, 10)
	for i := range users {
		users[i] = createTestUser(t, db, "user"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(users)*2)
	for i, user := range users {
		wg.Add(2)
		go func(user int64, value int) {
			defer wg.Done()
			errs <- db.UpsertRating(ctx, photoID, user, value)
		}(user, i%5+1)
		go func() {
			defer wg.Done()
			_, err := db.ListRatings(ctx, photoID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent operation failed: %v", err)
		}
	}

	ratings, err := db.ListRatings(ctx, photoID)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(ratings) != len(users) {
		t.Errorf("got %d ratings, want %d", len(ratings), len(users))
	}
}
