package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/physio/physio/internal/platform/auth"
	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/response"
	"github.com/physio/physio/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient resource under api/patients. mw runs
// before the role check, so it also sees rejected requests.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	mw = append(mw, auth.RequireRole(auth.RolePhysiotherapist))
	g := api.Group("/patients", mw...)
	g.GET("", h.List)
	g.POST("", h.Store)
	g.GET("/:id", h.Show)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Destroy)
}

func owner(c echo.Context) (uuid.UUID, error) {
	id, err := auth.OwnerFromContext(c.Request().Context())
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
	}
	return id, nil
}

// patientID parses the id route parameter. A malformed id cannot name a
// record, so it is reported as not found.
func patientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}
	return id, nil
}

func bindPayload(c echo.Context) (Payload, error) {
	body := Payload{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return nil, httpErr
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	}
	return body, nil
}

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}
	return err
}

func (h *Handler) List(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}

	res, err := h.svc.List(c.Request().Context(), ownerID, ListParams{
		Query:    c.QueryParam("query"),
		Fields:   c.QueryParam("fields"),
		Paginate: c.QueryParam("paginate"),
		Page:     c.QueryParam(pagination.PageParam),
	})
	if err != nil {
		return mapError(err)
	}

	if !res.Paginated {
		return response.Success(c, http.StatusOK, i18n.PatientsListed, res.Rows)
	}

	req := c.Request()
	path := c.Scheme() + "://" + req.Host + req.URL.Path
	page := pagination.NewPage(res.Rows, res.Total, res.Page, path, c.QueryParams())
	return response.Success(c, http.StatusOK, i18n.PatientsListed, page)
}

func (h *Handler) Store(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	body, err := bindPayload(c)
	if err != nil {
		return err
	}

	p, err := h.svc.Create(c.Request().Context(), ownerID, body)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, http.StatusCreated, i18n.PatientCreated, p)
}

func (h *Handler) Show(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return err
	}

	p, err := h.svc.Get(c.Request().Context(), ownerID, id)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, http.StatusOK, i18n.PatientShown, p)
}

func (h *Handler) Update(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return err
	}
	body, err := bindPayload(c)
	if err != nil {
		return err
	}

	p, err := h.svc.Update(c.Request().Context(), ownerID, id, body)
	if err != nil {
		return mapError(err)
	}
	return response.Success(c, http.StatusOK, i18n.PatientUpdated, p)
}

func (h *Handler) Destroy(c echo.Context) error {
	ownerID, err := owner(c)
	if err != nil {
		return err
	}
	id, err := patientID(c)
	if err != nil {
		return err
	}

	if err := h.svc.Delete(c.Request().Context(), ownerID, id); err != nil {
		return mapError(err)
	}
	return response.Success(c, http.StatusOK, i18n.PatientDeleted, nil)
}
