package patient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/physio/physio/internal/platform/auth"
	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/response"
	"github.com/physio/physio/internal/platform/validation"
)

// identity authenticates every request as owner, or leaves it anonymous for
// uuid.Nil.
func identity(owner uuid.UUID, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if owner != uuid.Nil {
				ctx := auth.WithIdentity(c.Request().Context(), owner, roles)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

type testServer struct {
	e    *echo.Echo
	svc  *Service
	repo *memRepo
}

func newTestServer(owner uuid.UUID, roles ...string) *testServer {
	if len(roles) == 0 {
		roles = []string{auth.RolePhysiotherapist}
	}
	e := echo.New()
	e.JSONSerializer = response.JSONSerializer{}
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	e.Use(i18n.Middleware(language.English))

	repo := newMemRepo()
	svc := NewService(repo, validation.New())
	api := e.Group("/api/v1", identity(owner, roles...))
	NewHandler(svc).RegisterRoutes(api)
	return &testServer{e: e, svc: svc, repo: repo}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, target, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (body=%s)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func TestHandler_StoreAndShow(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)

	rec, env := s.do(t, http.MethodPost, "/api/v1/patients",
		`{"first_name":" Jan ","last_name":"Kowalski","pesel":"44051401359","born_date":"1944-05-14","gender":"male"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !env.Success || env.Message != "Patient created successfully." {
		t.Errorf("unexpected envelope: %+v", env)
	}
	var created Patient
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.OwnerID != owner || *created.FirstName != "Jan" {
		t.Errorf("unexpected patient: %+v", created)
	}

	rec, env = s.do(t, http.MethodGet, "/api/v1/patients/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var shown map[string]interface{}
	if err := json.Unmarshal(env.Data, &shown); err != nil {
		t.Fatal(err)
	}
	if shown["id"] != created.ID.String() || shown["born_date"] != "1944-05-14" {
		t.Errorf("unexpected show data: %v", shown)
	}
}

func TestHandler_StoreValidation(t *testing.T) {
	s := newTestServer(uuid.New())
	rec, env := s.do(t, http.MethodPost, "/api/v1/patients", `{"first_name":"","gender":"x"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.Success || env.Message != "The given data was invalid." {
		t.Errorf("unexpected envelope: %+v", env)
	}
	var errs map[string][]string
	if err := json.Unmarshal(env.Data, &errs); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"first_name", "last_name", "gender"} {
		if len(errs[f]) == 0 {
			t.Errorf("expected error for %s, got %v", f, errs)
		}
	}
}

func TestHandler_StoreLocalizedValidation(t *testing.T) {
	s := newTestServer(uuid.New())
	_, env := s.do(t, http.MethodPost, "/api/v1/patients", `{"last_name":"Nowak"}`,
		"Accept-Language", "pl-PL,pl;q=0.9")
	if env.Message != "Przesłane dane są nieprawidłowe." {
		t.Errorf("unexpected message: %s", env.Message)
	}
	var errs map[string][]string
	if err := json.Unmarshal(env.Data, &errs); err != nil {
		t.Fatal(err)
	}
	if len(errs["first_name"]) != 1 || errs["first_name"][0] != "Pole first name jest wymagane." {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestHandler_StoreMalformedBody(t *testing.T) {
	s := newTestServer(uuid.New())
	rec, env := s.do(t, http.MethodPost, "/api/v1/patients", `{"first_name":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Success {
		t.Error("expected failure envelope")
	}
}

func TestHandler_NotFound(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)
	foreign := seed(t, s.svc, uuid.New(), "Ewa", "Adamska")

	for _, tt := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/v1/patients/" + uuid.NewString(), ""},
		{http.MethodGet, "/api/v1/patients/not-a-uuid", ""},
		{http.MethodGet, "/api/v1/patients/" + foreign.ID.String(), ""},
		{http.MethodPut, "/api/v1/patients/" + foreign.ID.String(), `{"first_name":"A","last_name":"B"}`},
		{http.MethodDelete, "/api/v1/patients/" + foreign.ID.String(), ""},
		{http.MethodDelete, "/api/v1/patients/42", ""},
	} {
		rec, env := s.do(t, tt.method, tt.path, tt.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tt.method, tt.path, rec.Code)
		}
		if env.Message != "Resource not found." {
			t.Errorf("%s %s: unexpected message %q", tt.method, tt.path, env.Message)
		}
	}
	if _, err := s.svc.Get(context.Background(), foreign.OwnerID, foreign.ID); err != nil {
		t.Errorf("foreign record must survive: %v", err)
	}
}

func TestHandler_UpdateAndDestroy(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)
	p := seed(t, s.svc, owner, "Jan", "Kowalski")
	path := "/api/v1/patients/" + p.ID.String()

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		rec, env := s.do(t, method, path, `{"first_name":"Janusz","last_name":"Kowalski","city":"Gdańsk"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, rec.Code)
		}
		if env.Message != "Patient updated successfully." {
			t.Errorf("%s: unexpected message %q", method, env.Message)
		}
	}

	rec, env := s.do(t, http.MethodDelete, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if string(env.Data) != "{}" {
		t.Errorf("expected empty object, got %s", env.Data)
	}
	if rec, _ := s.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleted record still readable: %d", rec.Code)
	}
}

func TestHandler_ListCollection(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)
	seed(t, s.svc, owner, "Anna", "Nowak")
	seed(t, s.svc, owner, "Jan", "Kowalski")
	seed(t, s.svc, uuid.New(), "Ewa", "Adamska")

	rec, env := s.do(t, http.MethodGet, "/api/v1/patients?fields=last_name,first_name", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env.Message != "Patients retrieved successfully." {
		t.Errorf("unexpected message: %q", env.Message)
	}
	want := `[{"last_name":"Kowalski","first_name":"Jan"},{"last_name":"Nowak","first_name":"Anna"}]`
	if compact(t, env.Data) != want {
		t.Errorf("got %s, want %s", env.Data, want)
	}
}

func TestHandler_ListEmpty(t *testing.T) {
	s := newTestServer(uuid.New())
	_, env := s.do(t, http.MethodGet, "/api/v1/patients", "")
	if compact(t, env.Data) != "[]" {
		t.Errorf("expected empty array, got %s", env.Data)
	}
}

func TestHandler_ListUnknownField(t *testing.T) {
	s := newTestServer(uuid.New())
	rec, env := s.do(t, http.MethodGet, "/api/v1/patients?fields=bogus_column", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var errs map[string][]string
	if err := json.Unmarshal(env.Data, &errs); err != nil {
		t.Fatal(err)
	}
	if len(errs["fields"]) != 1 {
		t.Errorf("expected a fields error, got %v", errs)
	}
	if len(s.repo.lists) != 0 {
		t.Error("no query may run for an unknown field")
	}
}

func TestHandler_ListPaginated(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)
	for i := 0; i < 11; i++ {
		seed(t, s.svc, owner, "Jan", "Kowalski"+string(rune('A'+i)))
	}

	rec, env := s.do(t, http.MethodGet, "/api/v1/patients?paginate=1&query=Jan&fields=id", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		CurrentPage int                      `json:"current_page"`
		Data        []map[string]interface{} `json:"data"`
		LastPage    int                      `json:"last_page"`
		NextPageURL *string                  `json:"next_page_url"`
		PrevPageURL *string                  `json:"prev_page_url"`
		Path        string                   `json:"path"`
		PerPage     int                      `json:"per_page"`
		Total       int                      `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.CurrentPage != 1 || page.LastPage != 2 || page.Total != 11 || page.PerPage != 10 {
		t.Errorf("unexpected page: %+v", page)
	}
	if len(page.Data) != 10 {
		t.Errorf("expected 10 rows, got %d", len(page.Data))
	}
	if page.Path != "http://example.com/api/v1/patients" {
		t.Errorf("unexpected path: %s", page.Path)
	}
	if page.PrevPageURL != nil {
		t.Errorf("first page has no previous link, got %s", *page.PrevPageURL)
	}
	if page.NextPageURL == nil {
		t.Fatal("expected a next link")
	}
	for _, part := range []string{"page=2", "paginate=1", "query=Jan", "fields=id"} {
		if !strings.Contains(*page.NextPageURL, part) {
			t.Errorf("next link %s lacks %s", *page.NextPageURL, part)
		}
	}
}

func TestHandler_ListHugePage(t *testing.T) {
	owner := uuid.New()
	s := newTestServer(owner)
	seed(t, s.svc, owner, "Jan", "Kowalski")

	rec, env := s.do(t, http.MethodGet, "/api/v1/patients?paginate=1&page=9223372036854775807", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if q := s.repo.lists[0]; q.Offset < 0 {
		t.Errorf("offset must stay positive, got %d", q.Offset)
	}
	var page struct {
		Data  []interface{} `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 0 || page.Total != 1 {
		t.Errorf("expected an empty page past the end, got %+v", page)
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	s := newTestServer(uuid.Nil)
	rec, env := s.do(t, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without roles, got %d", rec.Code)
	}
	if env.Success {
		t.Error("expected failure envelope")
	}
}

func TestHandler_WrongRole(t *testing.T) {
	s := newTestServer(uuid.New(), "receptionist")
	rec, _ := s.do(t, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_OwnerWithoutRoleCheck(t *testing.T) {
	h := NewHandler(NewService(newMemRepo(), validation.New()))
	e := echo.New()
	e.JSONSerializer = response.JSONSerializer{}
	e.HTTPErrorHandler = response.ErrorHandler(zerolog.Nop())
	e.GET("/patients", h.List)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an owner, got %d", rec.Code)
	}
}

func compact(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}
