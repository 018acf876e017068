package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-management/internal/model"
	"github.com/iliyamo/cinema-management/internal/repository"
	"github.com/iliyamo/cinema-management/internal/service"
	"github.com/iliyamo/cinema-management/internal/storage"
	"github.com/iliyamo/cinema-management/internal/utils"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

// newContext builds an echo context for a JSON request.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func firstField(t *testing.T, body map[string]any) string {
	t.Helper()
	fields, ok := body["fields"].([]any)
	require.True(t, ok, "fields missing in %v", body)
	require.NotEmpty(t, fields)
	return fields[0].(map[string]any)["field"].(string)
}

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errBadBody, http.StatusBadRequest},
		{service.FieldErrors{{Field: "name", Message: "is required"}}, http.StatusUnprocessableEntity},
		{&repository.DuplicateError{Field: "code"}, http.StatusConflict},
		{repository.ErrMovieNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", repository.ErrShowtimeNotFound), http.StatusNotFound},
		{repository.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("resize room 2: %w", repository.ErrRoomInUse), http.StatusConflict},
		{service.ErrSeatTaken, http.StatusConflict},
		{service.ErrSoldOut, http.StatusConflict},
		{service.ErrOutOfBounds, http.StatusUnprocessableEntity},
		{service.ErrInvalidRange, http.StatusUnprocessableEntity},
		{storage.ErrUnsupportedType, http.StatusUnprocessableEntity},
		{storage.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/", "")
			require.NoError(t, respondError(c, tc.err))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/", "")
	require.NoError(t, respondError(c, errors.New("dial tcp 10.0.0.3:3306: refused")))
	assert.Equal(t, "internal server error", decode(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestParseID(t *testing.T) {
	for _, raw := range []string{"", "0", "-1", "abc"} {
		c, _ := newContext(http.MethodGet, "/", "")
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, err := parseID(c, "id")
		assert.ErrorIs(t, err, repository.ErrNotFound, raw)
	}
	c, _ := newContext(http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("42")
	id, err := parseID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestPageFrom(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?page=3&limit=500", "")
	p := pageFrom(c, 10)
	assert.Equal(t, 3, p.Number)
	assert.Equal(t, maxPageSize, p.Size)

	c, _ = newContext(http.MethodGet, "/?page=x&limit=-2", "")
	p = pageFrom(c, 10)
	assert.Equal(t, repository.Page{Number: 1, Size: 10}, p)
}

func TestNewPageCountsPages(t *testing.T) {
	p := newPage([]int{1, 2, 3}, 7, repository.Page{Number: 1, Size: 3})
	assert.Equal(t, int64(3), p.TotalPages)
	assert.Equal(t, int64(0), newPage(nil, 0, repository.Page{Number: 1, Size: 3}).TotalPages)
}

func TestValidatorReportsJSONNames(t *testing.T) {
	err := NewValidator().Validate(&roomReq{Name: "A", Rows: 0, Columns: 5})
	var fe service.FieldErrors
	require.ErrorAs(t, err, &fe)
	fields := map[string]string{}
	for _, f := range fe {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "must have at least 3 characters", fields["name"])
	assert.Equal(t, "must be at least 1", fields["rows"])
	assert.NotContains(t, fields, "columns")
}

func TestRoomCreate(t *testing.T) {
	db, mock := newMock(t)
	h := NewRoomHandler(repository.NewRoomRepo(db))

	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("Sala 1", 5, 8).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery("SELECT id, name, seat_rows, seat_cols, created_at FROM rooms").
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "seat_rows", "seat_cols", "created_at"}).
			AddRow(4, "Sala 1", 5, 8, time.Now()))

	c, rec := newContext(http.MethodPost, "/v1/rooms", `{"name":"  Sala 1 ","rows":5,"columns":8}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Sala 1", decode(t, rec)["name"])
}

func TestRoomCreateDuplicateName(t *testing.T) {
	db, mock := newMock(t)
	h := NewRoomHandler(repository.NewRoomRepo(db))

	mock.ExpectExec("INSERT INTO rooms").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Sala 1' for key 'rooms.uq_rooms_name'"})

	c, rec := newContext(http.MethodPost, "/v1/rooms", `{"name":"Sala 1","rows":5,"columns":8}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "name", firstField(t, decode(t, rec)))
}

func TestRoomCreateRejectsInput(t *testing.T) {
	db, _ := newMock(t)
	h := NewRoomHandler(repository.NewRoomRepo(db))

	c, rec := newContext(http.MethodPost, "/v1/rooms", `{"name":"Sala 1","rows":0,"columns":8}`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "rows", firstField(t, decode(t, rec)))

	c, rec = newContext(http.MethodPost, "/v1/rooms", `{"name":`)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

var userCols = []string{"id", "username", "password_hash", "role", "first_name", "last_name", "email", "phone", "address", "created_at"}

func userRow(id uint64, username, password, role string) *sqlmock.Rows {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return sqlmock.NewRows(userCols).
		AddRow(id, username, string(hash), role, "Ana", "Rojas", "", "", "", time.Now())
}

func newAuthHandler(db *sql.DB) *AuthHandler {
	users := repository.NewUserRepo(db)
	return NewAuthHandler(service.NewAccounts(users, "test-secret", time.Hour, bcrypt.MinCost), users, bcrypt.MinCost)
}

func TestLogin(t *testing.T) {
	db, mock := newMock(t)
	h := newAuthHandler(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = ?")).
		WithArgs("ana").
		WillReturnRows(userRow(9, "ana", "s3cret!", model.RoleManager))

	c, rec := newContext(http.MethodPost, "/v1/auth/login", `{"username":" ana ","password":"s3cret!"}`)
	require.NoError(t, h.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User   model.User `json:"user"`
		Access tokenPart  `json:"access"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ana", resp.User.Username)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	id, err := utils.ParseAccessToken("test-secret", resp.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), id.UserID)
	assert.Equal(t, model.RoleManager, id.Role)
}

func TestLoginUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	h := newAuthHandler(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = ?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	c, rec := newContext(http.MethodPost, "/v1/auth/login", `{"username":"ghost","password":"whatever"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "username", firstField(t, decode(t, rec)))
}

func TestLoginWrongPassword(t *testing.T) {
	db, mock := newMock(t)
	h := newAuthHandler(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = ?")).
		WithArgs("ana").
		WillReturnRows(userRow(9, "ana", "s3cret!", model.RoleManager))

	c, rec := newContext(http.MethodPost, "/v1/auth/login", `{"username":"ana","password":"nope"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "password", firstField(t, decode(t, rec)))
}

func TestLoginRequiresFields(t *testing.T) {
	db, _ := newMock(t)
	h := newAuthHandler(db)

	c, rec := newContext(http.MethodPost, "/v1/auth/login", `{"username":"ana"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "password", firstField(t, decode(t, rec)))
}

func TestChangePasswordChecksCurrent(t *testing.T) {
	db, mock := newMock(t)
	h := newAuthHandler(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs(uint64(9)).
		WillReturnRows(userRow(9, "ana", "s3cret!", model.RoleManager))

	c, rec := newContext(http.MethodPatch, "/v1/me/password", `{"current_password":"wrong","new_password":"another1"}`)
	c.Set("user_id", uint64(9))
	require.NoError(t, h.ChangePassword(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "current_password", firstField(t, decode(t, rec)))
}

func TestMeRequiresIdentity(t *testing.T) {
	db, _ := newMock(t)
	h := newAuthHandler(db)

	c, rec := newContext(http.MethodGet, "/v1/me", "")
	require.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestManagerCannotCreateAdministrator(t *testing.T) {
	db, _ := newMock(t)
	h := NewUserHandler(repository.NewUserRepo(db), bcrypt.MinCost)

	body := `{"username":"boss","role":"Administrator","first_name":"Big","last_name":"Boss","password":"secret1"}`
	c, rec := newContext(http.MethodPost, "/v1/users", body)
	c.Set("role", model.RoleManager)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestManagerDoesNotSeeAdministrators(t *testing.T) {
	db, mock := newMock(t)
	h := NewUserHandler(repository.NewUserRepo(db), bcrypt.MinCost)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).
		WithArgs(uint64(1)).
		WillReturnRows(userRow(1, "admin", "admin", model.RoleAdministrator))

	c, rec := newContext(http.MethodGet, "/v1/users/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	c.Set("role", model.RoleManager)
	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserCannotDeleteSelf(t *testing.T) {
	db, _ := newMock(t)
	h := NewUserHandler(repository.NewUserRepo(db), bcrypt.MinCost)

	c, rec := newContext(http.MethodDelete, "/v1/users/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")
	c.Set("user_id", uint64(5))
	c.Set("role", model.RoleAdministrator)
	require.NoError(t, h.Delete(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPurchaseCreateValidates(t *testing.T) {
	db, _ := newMock(t)
	showtimes := repository.NewShowtimeRepo(db)
	seats := repository.NewSeatRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	purchases := service.NewPurchases(showtimes, invoices, service.NewLedger(showtimes, seats), nil, time.Second)
	h := NewPurchaseHandler(purchases, showtimes, invoices, seats)

	body := `{"customer_name":"J0","tax_id":"abc","email":"nope","showtime_id":3,"seats":[{"row":1,"column":1}]}`
	c, rec := newContext(http.MethodPost, "/v1/purchases", body)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	fields := map[string]bool{}
	for _, f := range decode(t, rec)["fields"].([]any) {
		fields[f.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["customer_name"])
	assert.True(t, fields["tax_id"])
	assert.True(t, fields["email"])
}

func TestHealth(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectPing()

	c, rec := newContext(http.MethodGet, "/healthz", "")
	require.NoError(t, Health(db)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	c, rec = newContext(http.MethodGet, "/healthz", "")
	require.NoError(t, Health(db)(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubMovies map[uint64]*model.Movie

func (m stubMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	if mv, ok := m[id]; ok {
		return mv, nil
	}
	return nil, repository.ErrMovieNotFound
}

type stubRooms map[uint64]*model.Room

func (m stubRooms) GetByID(_ context.Context, id uint64) (*model.Room, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, repository.ErrRoomNotFound
}

// flakyShowtimes never reports overlaps and fails the failOn-th Create.
type flakyShowtimes struct {
	failOn  int
	creates int
	saved   []model.Showtime
}

func (f *flakyShowtimes) FindOverlapping(context.Context, uint64, time.Time, time.Time) ([]model.Showtime, error) {
	return nil, nil
}

func (f *flakyShowtimes) Create(_ context.Context, s *model.Showtime) error {
	f.creates++
	if f.creates == f.failOn {
		return errors.New("lost connection to mysql")
	}
	s.ID = uint64(len(f.saved) + 1)
	f.saved = append(f.saved, *s)
	return nil
}

func newScheduleHandler(store *flakyShowtimes) *ShowtimeHandler {
	movies := stubMovies{1: {ID: 1, Name: "Dune", DurationHours: 2}}
	rooms := stubRooms{1: {ID: 1, Name: "Sala 1", Rows: 5, Columns: 5}}
	return &ShowtimeHandler{Scheduler: service.NewScheduler(movies, rooms, store, time.UTC), Loc: time.UTC, now: time.Now}
}

const threeDays = `{"movie_id":1,"price":35,"start_date":"2099-05-01","end_date":"2099-05-03","time":"18:00","rooms":[1]}`

func TestScheduleCreated(t *testing.T) {
	store := &flakyShowtimes{}
	c, rec := newContext(http.MethodPost, "/v1/showtimes", threeDays)
	require.NoError(t, newScheduleHandler(store).Schedule(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode(t, rec)["created"], 3)
	assert.Len(t, store.saved, 3)
}

func TestScheduleFailureReportsPartialResult(t *testing.T) {
	store := &flakyShowtimes{failOn: 3}
	c, rec := newContext(http.MethodPost, "/v1/showtimes", threeDays)
	require.NoError(t, newScheduleHandler(store).Schedule(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal server error", body["error"])
	created, ok := body["created"].([]any)
	require.True(t, ok, "created missing in %v", body)
	assert.Len(t, created, len(store.saved))
	assert.Len(t, created, 2)
	assert.Contains(t, body, "conflicts")
	assert.Contains(t, body, "skipped_rooms")
	assert.NotContains(t, rec.Body.String(), "mysql")
}

func TestScheduleMissingMovieIsNotFound(t *testing.T) {
	body := `{"price":35,"start_date":"2099-05-01","end_date":"2099-05-01","time":"18:00","rooms":[1]}`
	c, rec := newContext(http.MethodPost, "/v1/showtimes", body)
	require.NoError(t, newScheduleHandler(&flakyShowtimes{}).Schedule(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchaseMissingShowtimeIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	showtimes := repository.NewShowtimeRepo(db)
	seats := repository.NewSeatRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	purchases := service.NewPurchases(showtimes, invoices, service.NewLedger(showtimes, seats), nil, time.Second)
	h := NewPurchaseHandler(purchases, showtimes, invoices, seats)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM showtimes s")).
		WithArgs(uint64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	body := `{"customer_name":"Ana Perez","tax_id":"1234567","email":"ana@example.com","seats":[{"row":0,"column":0}]}`
	c, rec := newContext(http.MethodPost, "/v1/purchases", body)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomUpdateResizeWithShowtimesConflicts(t *testing.T) {
	db, mock := newMock(t)
	h := NewRoomHandler(repository.NewRoomRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_rows, seat_cols FROM rooms WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_rows", "seat_cols"}).AddRow(5, 5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM showtimes WHERE room_id = ?)")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))
	mock.ExpectRollback()

	c, rec := newContext(http.MethodPatch, "/v1/rooms/2", `{"name":"Sala 1","rows":10,"columns":10}`)
	c.SetParamNames("id")
	c.SetParamValues("2")
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "rows", firstField(t, decode(t, rec)))
}
