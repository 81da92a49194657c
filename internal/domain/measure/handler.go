package measure

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hqmf/internal/hqmf"
	"github.com/ehr/hqmf/internal/platform/auth"
	"github.com/ehr/hqmf/pkg/pagination"
)

// CacheHeader reports whether an extraction was served from the cache.
const CacheHeader = "X-Extraction-Cache"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.POST("/hqmf/extract", h.Extract)
	read.GET("/measures", h.ListMeasures)
	read.GET("/measures/:id", h.GetMeasure)
	read.GET("/measures/:id/data-criteria", h.ListCriteria)

	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.POST("/measures/hqmf", h.ImportMeasure)
	write.DELETE("/measures/:id", h.DeleteMeasure)
}

func readDocument(c echo.Context) ([]byte, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "read request body: "+err.Error())
	}
	if len(data) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "empty request body")
	}
	return data, nil
}

// extractionError maps service errors: fatal data is 422, anything else the
// document is to blame for is 400.
func extractionError(err error) error {
	switch {
	case hqmf.IsFatal(err):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidDocument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

func (h *Handler) Extract(c echo.Context) error {
	data, err := readDocument(c)
	if err != nil {
		return err
	}
	m, cached, err := h.svc.Extract(c.Request().Context(), data)
	if err != nil {
		return extractionError(err)
	}
	if cached {
		c.Response().Header().Set(CacheHeader, "hit")
	} else {
		c.Response().Header().Set(CacheHeader, "miss")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ImportMeasure(c echo.Context) error {
	data, err := readDocument(c)
	if err != nil {
		return err
	}
	m, created, err := h.svc.Import(c.Request().Context(), data)
	if err != nil {
		return extractionError(err)
	}
	if !created {
		return c.JSON(http.StatusOK, m)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMeasure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMeasure(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMeasures(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListCriteria(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	filter := CriteriaFilter{Definition: c.QueryParam("definition")}
	if v := c.QueryParam("variable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid variable flag")
		}
		filter.Variable = &b
	}

	items, err := h.svc.ListCriteria(c.Request().Context(), id, filter)
	if err != nil {
		if errors.Is(err, ErrUnknownDefinition) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return notFoundOr(err)
	}
	if items == nil {
		items = []*hqmf.DataCriterion{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteMeasure(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteMeasure(c.Request().Context(), id); err != nil {
		return notFoundOr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
