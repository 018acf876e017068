package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
)

type memMovies map[uint64]*model.Movie

func (m memMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	if mv, ok := m[id]; ok {
		return mv, nil
	}
	return nil, repository.ErrMovieNotFound
}

type memRooms map[uint64]*model.Room

func (m memRooms) GetByID(_ context.Context, id uint64) (*model.Room, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRoomNotFound
}

type memShowtimes struct {
	mu      sync.Mutex
	items   []model.Showtime
	failOn  int // Create fails on this call number when > 0
	creates int
}

func (m *memShowtimes) FindOverlapping(_ context.Context, roomID uint64, start, end time.Time) ([]model.Showtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Showtime
	for _, s := range m.items {
		if s.RoomID == roomID && s.Overlaps(start, end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShowtimes) Create(_ context.Context, s *model.Showtime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failOn > 0 && m.creates == m.failOn {
		return errors.New("connection refused")
	}
	s.ID = uint64(len(m.items) + 1)
	m.items = append(m.items, *s)
	return nil
}

// fixture: today is 2030-05-01 10:00 UTC.
func newTestScheduler(store *memShowtimes) *Scheduler {
	movies := memMovies{1: {ID: 1, Name: "Dune", DurationHours: 2}}
	rooms := memRooms{
		1: {ID: 1, Name: "Sala 1", Rows: 5, Columns: 5},
		2: {ID: 2, Name: "Sala 2", Rows: 8, Columns: 10},
		3: {ID: 3, Name: "Sala 3", Rows: 3, Columns: 4},
	}
	s := NewScheduler(movies, rooms, store, time.UTC)
	s.now = func() time.Time { return time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestScheduleSala1Scenario(t *testing.T) {
	store := &memShowtimes{}
	s := newTestScheduler(store)
	ctx := context.Background()

	res, err := s.ScheduleShowtimes(ctx, ScheduleRequest{
		MovieID: 1, Price: 35, StartDate: "2030-05-02", EndDate: "2030-05-04", Time: "18:00", RoomIDs: []uint64{1},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	assert.Empty(t, res.Conflicts)
	for _, st := range res.Created {
		assert.Equal(t, 25, st.TotalSeats)
		assert.Equal(t, 0, st.SoldSeats)
		assert.Equal(t, int64(3500), st.PriceCents)
		assert.Equal(t, 2*time.Hour, st.EndsAt.Sub(st.StartsAt))
		assert.Equal(t, 18, st.StartsAt.Hour())
	}

	res, err = s.ScheduleShowtimes(ctx, ScheduleRequest{
		MovieID: 1, Price: 35, StartDate: "2030-05-03", EndDate: "2030-05-03", Time: "18:00", RoomIDs: []uint64{1},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Sala 1", res.Conflicts[0].RoomName)
	assert.Equal(t, "Sala 1 busy between 03/05/30 18:00 - 03/05/30 20:00", res.Conflicts[0].Message)
	assert.Len(t, store.items, 3)
}

func TestScheduleBackToBackIsConflict(t *testing.T) {
	store := &memShowtimes{}
	s := newTestScheduler(store)
	ctx := context.Background()

	_, err := s.ScheduleShowtimes(ctx, ScheduleRequest{MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-02", Time: "18:00", RoomIDs: []uint64{1}})
	require.NoError(t, err)

	// 20:00 is exactly when the first screening ends; closed intervals overlap.
	res, err := s.ScheduleShowtimes(ctx, ScheduleRequest{MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-02", Time: "20:00", RoomIDs: []uint64{1}})
	require.NoError(t, err)
	assert.Len(t, res.Conflicts, 1)

	res, err = s.ScheduleShowtimes(ctx, ScheduleRequest{MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-02", Time: "20:01", RoomIDs: []uint64{1}})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
}

func TestScheduleCountsSumToDaysTimesRooms(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	store := &memShowtimes{}
	s := newTestScheduler(store)
	ctx := context.Background()
	base := time.Date(2030, 5, 2, 0, 0, 0, 0, time.UTC)
	allRooms := []uint64{1, 2, 3}

	for i := 0; i < 200; i++ {
		first := base.AddDate(0, 0, rng.Intn(20))
		last := first.AddDate(0, 0, rng.Intn(5))
		rooms := allRooms[:1+rng.Intn(len(allRooms))]
		req := ScheduleRequest{
			MovieID:   1,
			Price:     float64(rng.Intn(201)),
			StartDate: first.Format(DateLayout),
			EndDate:   last.Format(DateLayout),
			Time:      time.Date(2000, 1, 1, rng.Intn(24), 15*rng.Intn(4), 0, 0, time.UTC).Format(TimeLayout),
			RoomIDs:   rooms,
		}
		res, err := s.ScheduleShowtimes(ctx, req)
		require.NoError(t, err)
		days := int(last.Sub(first).Hours()/24) + 1
		assert.Equal(t, days*len(rooms), len(res.Created)+len(res.Conflicts), "request %+v", req)
	}

	// No two showtimes of a room overlap after any sequence of calls.
	for i, a := range store.items {
		for _, b := range store.items[i+1:] {
			if a.RoomID == b.RoomID {
				assert.False(t, a.Overlaps(b.StartsAt, b.EndsAt), "showtimes %d and %d overlap", a.ID, b.ID)
			}
		}
	}
}

func TestScheduleSkipsMissingRooms(t *testing.T) {
	s := newTestScheduler(&memShowtimes{})
	res, err := s.ScheduleShowtimes(context.Background(), ScheduleRequest{
		MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-03", Time: "18:00", RoomIDs: []uint64{2, 99, 2},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2, "duplicate room ids are scheduled once")
	assert.Equal(t, []uint64{99}, res.SkippedRooms)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestScheduler(&memShowtimes{})
	ctx := context.Background()
	valid := ScheduleRequest{MovieID: 1, Price: 10, StartDate: "2030-05-02", EndDate: "2030-05-02", Time: "18:00", RoomIDs: []uint64{1}}

	t.Run("inverted range is fatal", func(t *testing.T) {
		req := valid
		req.StartDate, req.EndDate = "2030-05-04", "2030-05-02"
		_, err := s.ScheduleShowtimes(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	fieldCases := []struct {
		name  string
		edit  func(r *ScheduleRequest)
		field string
	}{
		{"past start", func(r *ScheduleRequest) { r.StartDate = "2030-04-30" }, "start_date"},
		{"past end", func(r *ScheduleRequest) { r.StartDate, r.EndDate = "2030-04-28", "2030-04-30" }, "end_date"},
		{"today earlier hour", func(r *ScheduleRequest) { r.StartDate, r.Time = "2030-05-01", "09:30" }, "time"},
		{"bad time", func(r *ScheduleRequest) { r.Time = "25:00" }, "time"},
		{"price too high", func(r *ScheduleRequest) { r.Price = 200.5 }, "price"},
		{"negative price", func(r *ScheduleRequest) { r.Price = -1 }, "price"},
		{"no rooms", func(r *ScheduleRequest) { r.RoomIDs = nil }, "rooms"},
		{"bad date", func(r *ScheduleRequest) { r.StartDate = "02/05/2030" }, "start_date"},
	}
	for _, tc := range fieldCases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.edit(&req)
			_, err := s.ScheduleShowtimes(ctx, req)
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			fields := make([]string, len(fe))
			for i, f := range fe {
				fields[i] = f.Field
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	t.Run("today later hour is fine", func(t *testing.T) {
		req := valid
		req.StartDate, req.EndDate, req.Time = "2030-05-01", "2030-05-01", "10:30"
		res, err := s.ScheduleShowtimes(ctx, req)
		require.NoError(t, err)
		assert.Len(t, res.Created, 1)
	})

	t.Run("unknown movie", func(t *testing.T) {
		req := valid
		req.MovieID = 42
		_, err := s.ScheduleShowtimes(ctx, req)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestScheduleStopsOnStoreFailure(t *testing.T) {
	store := &memShowtimes{failOn: 2}
	s := newTestScheduler(store)
	res, err := s.ScheduleShowtimes(context.Background(), ScheduleRequest{
		MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-05", Time: "18:00", RoomIDs: []uint64{1},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	require.NotNil(t, res)
	assert.Len(t, res.Created, 1)
}

func TestScheduleUsesLocation(t *testing.T) {
	loc := time.FixedZone("BOT", -4*60*60)
	s := newTestScheduler(&memShowtimes{})
	s.loc = loc
	res, err := s.ScheduleShowtimes(context.Background(), ScheduleRequest{
		MovieID: 1, StartDate: "2030-05-02", EndDate: "2030-05-02", Time: "21:00", RoomIDs: []uint64{3},
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, time.Date(2030, 5, 3, 1, 0, 0, 0, time.UTC), res.Created[0].StartsAt)
	assert.Equal(t, 12, res.Created[0].TotalSeats)
}
