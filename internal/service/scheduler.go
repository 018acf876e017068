package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
)

// Date and time layouts accepted by ScheduleShowtimes.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	conflictLayout = "02/01/06 15:04"
	maxPrice       = 200
)

// MovieFinder loads movies by id.
type MovieFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
}

// RoomFinder loads rooms by id.
type RoomFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
}

// ShowtimeStore is the persistence the scheduler needs.
type ShowtimeStore interface {
	FindOverlapping(ctx context.Context, roomID uint64, start, end time.Time) ([]model.Showtime, error)
	Create(ctx context.Context, s *model.Showtime) error
}

// Scheduler creates showtimes for a movie across a date range and a set
// of rooms, skipping every (day, room) pair that would overlap an
// existing showtime of the room.
type Scheduler struct {
	movies    MovieFinder
	rooms     RoomFinder
	showtimes ShowtimeStore
	loc       *time.Location
	now       func() time.Time
	log       *logrus.Entry
}

// NewScheduler returns a Scheduler that interprets dates and daily times
// in loc.
func NewScheduler(movies MovieFinder, rooms RoomFinder, showtimes ShowtimeStore, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		movies:    movies,
		rooms:     rooms,
		showtimes: showtimes,
		loc:       loc,
		now:       time.Now,
		log:       logrus.WithField("component", "scheduler"),
	}
}

// ScheduleRequest asks for one showtime per day in [StartDate, EndDate]
// at Time for every room in RoomIDs.
type ScheduleRequest struct {
	MovieID   uint64
	Price     float64
	StartDate string // DateLayout
	EndDate   string // DateLayout
	Time      string // TimeLayout
	RoomIDs   []uint64
}

// Conflict describes a (day, room) pair that was not scheduled because
// the room is already busy.
type Conflict struct {
	RoomID   uint64    `json:"room_id"`
	RoomName string    `json:"room_name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Message  string    `json:"message"`
}

// ScheduleResult reports every (day, room) pair: either a created
// showtime or a conflict.  Rooms that do not exist are listed once in
// SkippedRooms.
type ScheduleResult struct {
	Created      []model.Showtime `json:"created"`
	Conflicts    []Conflict       `json:"conflicts"`
	SkippedRooms []uint64         `json:"skipped_rooms"`
}

type schedulePlan struct {
	first, last time.Time // midnight of the first and last day, in loc
	hour, min   int
	priceCents  int64
	roomIDs     []uint64
}

// validate checks the request and turns it into a plan.  An inverted
// range is reported as ErrInvalidRange regardless of other problems.
func (s *Scheduler) validate(req ScheduleRequest) (*schedulePlan, error) {
	var errs FieldErrors
	p := &schedulePlan{}

	first, errStart := time.ParseInLocation(DateLayout, req.StartDate, s.loc)
	if errStart != nil {
		errs = errs.add("start_date", "must be a date formatted as YYYY-MM-DD")
	}
	last, errEnd := time.ParseInLocation(DateLayout, req.EndDate, s.loc)
	if errEnd != nil {
		errs = errs.add("end_date", "must be a date formatted as YYYY-MM-DD")
	}
	if errStart == nil && errEnd == nil && first.After(last) {
		return nil, ErrInvalidRange
	}
	p.first, p.last = first, last

	daily, err := time.Parse(TimeLayout, req.Time)
	if err != nil {
		errs = errs.add("time", "must be a time formatted as HH:MM")
	} else {
		p.hour, p.min = daily.Hour(), daily.Minute()
	}

	if math.IsNaN(req.Price) || req.Price < 0 || req.Price > maxPrice {
		errs = errs.add("price", fmt.Sprintf("must be between 0 and %d", maxPrice))
	} else {
		p.priceCents = int64(math.Round(req.Price * 100))
	}

	seen := make(map[uint64]bool, len(req.RoomIDs))
	for _, id := range req.RoomIDs {
		if !seen[id] {
			seen[id] = true
			p.roomIDs = append(p.roomIDs, id)
		}
	}
	if len(p.roomIDs) == 0 {
		errs = errs.add("rooms", "at least one room is required")
	}

	if errStart == nil && errEnd == nil {
		now := s.now().In(s.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		if first.Before(today) {
			errs = errs.add("start_date", "must not be in the past")
		}
		if last.Before(today) {
			errs = errs.add("end_date", "must not be in the past")
		}
		if err == nil && first.Equal(today) {
			if at := p.at(first); !at.After(now) {
				errs = errs.add("time", "must be later than the current time for today")
			}
		}
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return p, nil
}

// at returns day at the plan's daily time.  Built with time.Date so DST
// transitions in loc land on the right wall clock.
func (p *schedulePlan) at(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), p.hour, p.min, 0, 0, day.Location())
}

// days returns the number of days in the plan's range.
func (p *schedulePlan) days() int {
	n := 0
	for d := p.first; !d.After(p.last); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// ScheduleShowtimes creates one showtime per (day, room) pair that does
// not overlap an existing showtime of that room.  Overlapping pairs are
// reported as conflicts; the call never aborts on a conflict.  Missing
// rooms are skipped and listed in SkippedRooms.  The overlap check is a
// plain read before the insert, so two concurrent calls for the same room
// and window can both succeed.  A store failure stops the batch; the
// result built so far is returned with the error.
func (s *Scheduler) ScheduleShowtimes(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	plan, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	movie, err := s.movies.GetByID(ctx, req.MovieID)
	if err != nil {
		return nil, fmt.Errorf("load movie %d: %w", req.MovieID, err)
	}
	duration := movie.Duration()

	// Rooms are resolved once; the same grid is used for every day.
	rooms := make([]*model.Room, 0, len(plan.roomIDs))
	res := &ScheduleResult{Created: []model.Showtime{}, Conflicts: []Conflict{}, SkippedRooms: []uint64{}}
	for _, id := range plan.roomIDs {
		room, err := s.rooms.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithField("room_id", id).Info("skipping unknown room")
			res.SkippedRooms = append(res.SkippedRooms, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load room %d: %w", id, err)
		}
		rooms = append(rooms, room)
	}

	for d := plan.first; !d.After(plan.last); d = d.AddDate(0, 0, 1) {
		start := plan.at(d)
		end := start.Add(duration)
		for _, room := range rooms {
			busy, err := s.showtimes.FindOverlapping(ctx, room.ID, start, end)
			if err != nil {
				return res, fmt.Errorf("check room %d at %s: %w", room.ID, start.Format(time.RFC3339), err)
			}
			if len(busy) > 0 {
				res.Conflicts = append(res.Conflicts, Conflict{
					RoomID:   room.ID,
					RoomName: room.Name,
					StartsAt: start.UTC(),
					EndsAt:   end.UTC(),
					Message: fmt.Sprintf("%s busy between %s - %s", room.Name,
						start.Format(conflictLayout), end.Format(conflictLayout)),
				})
				continue
			}
			st := model.Showtime{
				MovieID:    movie.ID,
				RoomID:     room.ID,
				PriceCents: plan.priceCents,
				StartsAt:   start.UTC(),
				EndsAt:     end.UTC(),
				TotalSeats: room.Capacity(),
			}
			if err := s.showtimes.Create(ctx, &st); err != nil {
				return res, fmt.Errorf("create showtime in room %d at %s: %w", room.ID, start.Format(time.RFC3339), err)
			}
			res.Created = append(res.Created, st)
		}
	}

	s.log.WithFields(logrus.Fields{
		"movie_id":  movie.ID,
		"days":      plan.days(),
		"rooms":     len(rooms),
		"created":   len(res.Created),
		"conflicts": len(res.Conflicts),
		"skipped":   len(res.SkippedRooms),
	}).Info("showtimes scheduled")
	return res, nil
}
