package rating

import (
	"context"
	"errors"
	"sync"
	"testing"

	"photomap/internal/catalog"
)

type ratingKey struct{ photo, user int64 }

// memoryCatalog keeps ratings in a map keyed by (photo, user).
type memoryCatalog struct {
	mu      sync.Mutex
	photos  map[int64]bool
	ratings map[ratingKey]int
	writes  int
	failAll error
}

func newMemoryCatalog(photoIDs ...int64) *memoryCatalog {
	m := &memoryCatalog{photos: make(map[int64]bool), ratings: make(map[ratingKey]int)}
	for _, id := range photoIDs {
		m.photos[id] = true
	}
	return m
}

func (m *memoryCatalog) CreatePhoto(context.Context, catalog.StagedFile) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *memoryCatalog) FindUserByID(context.Context, int64) (*catalog.User, error) {
	return nil, nil
}

func (m *memoryCatalog) FindRating(_ context.Context, photoID, userID int64) (*catalog.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.ratings[ratingKey{photoID, userID}]
	if !ok {
		return nil, nil
	}
	return &catalog.Rating{PhotoID: photoID, UserID: userID, Value: v}, nil
}

func (m *memoryCatalog) UpsertRating(_ context.Context, photoID, userID int64, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	if !m.photos[photoID] {
		return catalog.ErrNotFound
	}
	m.writes++
	m.ratings[ratingKey{photoID, userID}] = value
	return nil
}

func (m *memoryCatalog) DeleteRating(_ context.Context, photoID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ratingKey{photoID, userID}
	if _, ok := m.ratings[k]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.ratings, k)
	return nil
}

func (m *memoryCatalog) ListRatings(_ context.Context, photoID int64) ([]catalog.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Rating
	for k, v := range m.ratings {
		if k.photo == photoID {
			out = append(out, catalog.Rating{PhotoID: k.photo, UserID: k.user, Value: v})
		}
	}
	return out, nil
}

func TestSetUpdatesInPlace(t *testing.T) {
	store := newMemoryCatalog(1)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.Set(ctx, 1, 10, 3); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := svc.Set(ctx, 1, 10, 5); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ratings, _ := store.ListRatings(ctx, 1)
	if len(ratings) != 1 || ratings[0].Value != 5 {
		t.Errorf("ratings = %+v, want one rating of 5", ratings)
	}

	r, err := svc.Get(ctx, 1, 10)
	if err != nil || r == nil || r.Value != 5 {
		t.Errorf("Get() = %+v, %v", r, err)
	}
}

func TestSetRejectsOutOfRange(t *testing.T) {
	store := newMemoryCatalog(1)
	svc := NewService(store)

	for _, v := range []int{0, 6, -1, 100} {
		err := svc.Set(context.Background(), 1, 10, v)
		if !errors.Is(err, catalog.ErrInvalidRating) {
			t.Errorf("Set(%d) error = %v, want ErrInvalidRating", v, err)
		}
	}
	if store.writes != 0 {
		t.Errorf("invalid ratings reached the catalog %d times", store.writes)
	}
}

func TestSetUnknownPhoto(t *testing.T) {
	svc := NewService(newMemoryCatalog())
	if err := svc.Set(context.Background(), 99, 1, 4); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Set() error = %v, want ErrNotFound", err)
	}
}

func TestSetPersistenceFailure(t *testing.T) {
	store := newMemoryCatalog(1)
	store.failAll = catalog.ErrPersistence
	svc := NewService(store)

	if err := svc.Set(context.Background(), 1, 1, 4); !errors.Is(err, catalog.ErrPersistence) {
		t.Errorf("Set() error = %v, want ErrPersistence", err)
	}
}

func TestClear(t *testing.T) {
	store := newMemoryCatalog(1)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.Clear(ctx, 1, 10); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Clear() without rating error = %v, want ErrNotFound", err)
	}

	if err := svc.Set(ctx, 1, 10, 4); err != nil {
		t.Fatal(err)
	}
	if err := svc.Clear(ctx, 1, 10); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
	if r, _ := svc.Get(ctx, 1, 10); r != nil {
		t.Errorf("rating still present: %+v", r)
	}
}

func TestSummaryForViewers(t *testing.T) {
	store := newMemoryCatalog(1)
	svc := NewService(store)
	ctx := context.Background()

	_ = svc.Set(ctx, 1, 1, 5)
	_ = svc.Set(ctx, 1, 2, 3)

	tests := []struct {
		name   string
		viewer *int64
		want   float64
	}{
		{"own rating", ptr(int64(1)), 5},
		{"non-rater", ptr(int64(3)), 4},
		{"anonymous", nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Summary(ctx, 1, tt.viewer)
			if err != nil {
				t.Fatal(err)
			}
			if s.Count != 2 {
				t.Errorf("Count = %d, want 2", s.Count)
			}
			if s.Display == nil || *s.Display != tt.want {
				t.Errorf("Display = %v, want %v", s.Display, tt.want)
			}
		})
	}
}

func TestConcurrentSetSamePair(t *testing.T) {
	store := newMemoryCatalog(1)
	svc := NewService(store)

	var wg sync.WaitGroup
	for v := 1; v <= 5; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_ = svc.Set(context.Background(), 1, 10, v)
		}(v)
	}
	wg.Wait()

	ratings, _ := store.ListRatings(context.Background(), 1)
	if len(ratings) != 1 {
		t.Errorf("got %d ratings for one pair, want 1", len(ratings))
	}
}
