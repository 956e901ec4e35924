package handler

import (
	"context"
	"time"

	analyticsapp "github.com/erp/analytics/internal/application/analytics"
	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	errRangeRequired   = shared.NewDomainError(analytics.CodeInvalidDateRange, "from and to are required unless preset is given")
	errWarehouseScoped = shared.NewDomainError(analytics.CodeInvalidWarehouseID, "by-warehouse does not take a warehouseId")
)

// RangeQuery is the common query string of the analytics read endpoints
type RangeQuery struct {
	From        string `form:"from" binding:"omitempty,day"`
	To          string `form:"to" binding:"omitempty,day"`
	Preset      *int   `form:"preset"`
	WarehouseID string `form:"warehouseId"`
}

// TopProductsQuery adds the list size to RangeQuery
type TopProductsQuery struct {
	RangeQuery
	Take int `form:"take" binding:"omitempty,min=1,max=100"`
}

// RebuildQuery is the query string of a manual aggregation run
type RebuildQuery struct {
	From string `form:"from" binding:"omitempty,day"`
	To   string `form:"to" binding:"omitempty,day"`
}

// resolvedRange is a RangeQuery after validation
type resolvedRange struct {
	from, to    time.Time
	preset      int
	warehouseID *uuid.UUID
}

// AnalyticsHandler serves the sales analytics API
type AnalyticsHandler struct {
	BaseHandler
	service        *analyticsapp.QueryService
	clock          clockwork.Clock
	triggerTimeout time.Duration
}

// AnalyticsHandlerOption configures an AnalyticsHandler
type AnalyticsHandlerOption func(*AnalyticsHandler)

// WithTriggerTimeout bounds a manual aggregation run started over HTTP
func WithTriggerTimeout(d time.Duration) AnalyticsHandlerOption {
	return func(h *AnalyticsHandler) {
		h.triggerTimeout = d
	}
}

// NewAnalyticsHandler creates a new AnalyticsHandler. A nil clock uses wall time.
func NewAnalyticsHandler(service *analyticsapp.QueryService, clock clockwork.Clock, opts ...AnalyticsHandlerOption) *AnalyticsHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &AnalyticsHandler{service: service, clock: clock}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(analytics.DateLayout, s, time.UTC)
}

// resolve validates q. A preset takes precedence over from/to; without one
// both bounds are required.
func (h *AnalyticsHandler) resolve(q RangeQuery) (*resolvedRange, error) {
	r := &resolvedRange{}
	if q.WarehouseID != "" {
		id, err := uuid.Parse(q.WarehouseID)
		if err != nil {
			return nil, analytics.ErrInvalidWarehouseID
		}
		r.warehouseID = &id
	}

	if q.Preset != nil {
		dr, err := analytics.PresetRange(*q.Preset, h.clock.Now())
		if err != nil {
			return nil, err
		}
		r.preset = *q.Preset
		r.from, r.to = dr.From, dr.To
		return r, nil
	}

	if q.From == "" || q.To == "" {
		return nil, errRangeRequired
	}
	var err error
	if r.from, err = parseDay(q.From); err != nil {
		return nil, analytics.ErrInvalidDateRange
	}
	if r.to, err = parseDay(q.To); err != nil {
		return nil, analytics.ErrInvalidDateRange
	}
	return r, nil
}

// bindRange binds and resolves the range query, writing the error response on failure
func (h *AnalyticsHandler) bindRange(c *gin.Context, q *RangeQuery) (*resolvedRange, bool) {
	if err := c.ShouldBindQuery(q); err != nil {
		h.ValidationError(c, err)
		return nil, false
	}
	r, err := h.resolve(*q)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return r, true
}

// Overview godoc
// @Summary      Sales overview
// @Description  Headline KPIs of a date range or preset window, optionally scoped to a warehouse
// @Tags         analytics
// @Produce      json
// @Param        from         query  string  false  "First day (YYYY-MM-DD)"
// @Param        to           query  string  false  "Last day (YYYY-MM-DD)"
// @Param        preset       query  int     false  "Preset window in days (7, 30, 365)"
// @Param        warehouseId  query  string  false  "Warehouse ID"
// @Success      200  {object}  dto.Response{data=analyticsapp.OverviewResponse}
// @Failure      400  {object}  dto.Response
// @Failure      503  {object}  dto.Response
// @Security     BearerAuth
// @Router       /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	var q RangeQuery
	r, ok := h.bindRange(c, &q)
	if !ok {
		return
	}

	var (
		resp *analyticsapp.OverviewResponse
		err  error
	)
	if r.preset != 0 {
		resp, err = h.service.OverviewPreset(c.Request.Context(), r.preset, r.warehouseID)
	} else {
		resp, err = h.service.Overview(c.Request.Context(), r.from, r.to, r.warehouseID)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SalesTrend godoc
// @Summary      Daily sales trend
// @Tags         analytics
// @Produce      json
// @Param        from         query  string  false  "First day (YYYY-MM-DD)"
// @Param        to           query  string  false  "Last day (YYYY-MM-DD)"
// @Param        preset       query  int     false  "Preset window in days (7, 30, 365)"
// @Param        warehouseId  query  string  false  "Warehouse ID"
// @Success      200  {object}  dto.Response{data=[]analyticsapp.TrendPointResponse}
// @Security     BearerAuth
// @Router       /analytics/sales-trend [get]
func (h *AnalyticsHandler) SalesTrend(c *gin.Context) {
	var q RangeQuery
	r, ok := h.bindRange(c, &q)
	if !ok {
		return
	}
	points, err := h.service.SalesTrend(c.Request.Context(), r.from, r.to, r.warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, points)
}

// SalesByWarehouse godoc
// @Summary      Revenue per warehouse
// @Tags         analytics
// @Produce      json
// @Param        from    query  string  false  "First day (YYYY-MM-DD)"
// @Param        to      query  string  false  "Last day (YYYY-MM-DD)"
// @Param        preset  query  int     false  "Preset window in days (7, 30, 365)"
// @Success      200  {object}  dto.Response{data=[]analyticsapp.WarehouseSalesResponse}
// @Security     BearerAuth
// @Router       /analytics/by-warehouse [get]
func (h *AnalyticsHandler) SalesByWarehouse(c *gin.Context) {
	var q RangeQuery
	r, ok := h.bindRange(c, &q)
	if !ok {
		return
	}
	if r.warehouseID != nil {
		h.HandleError(c, errWarehouseScoped)
		return
	}
	rows, err := h.service.SalesByWarehouse(c.Request.Context(), r.from, r.to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// TopProducts godoc
// @Summary      Top products by revenue
// @Tags         analytics
// @Produce      json
// @Param        from         query  string  false  "First day (YYYY-MM-DD)"
// @Param        to           query  string  false  "Last day (YYYY-MM-DD)"
// @Param        preset       query  int     false  "Preset window in days (7, 30, 365)"
// @Param        warehouseId  query  string  false  "Warehouse ID"
// @Param        take         query  int     false  "Number of products (default 10, max 100)"
// @Success      200  {object}  dto.Response{data=[]analyticsapp.TopProductResponse}
// @Security     BearerAuth
// @Router       /analytics/top-products [get]
func (h *AnalyticsHandler) TopProducts(c *gin.Context) {
	var q TopProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}
	r, err := h.resolve(q.RangeQuery)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	products, err := h.service.TopProducts(c.Request.Context(), r.from, r.to, r.warehouseID, q.Take)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// RunETL godoc
// @Summary      Rebuild daily aggregates
// @Description  Runs the aggregation job for [from, to], or for yesterday when neither is given
// @Tags         analytics
// @Produce      json
// @Param        from  query  string  false  "First day (YYYY-MM-DD)"
// @Param        to    query  string  false  "Last day (YYYY-MM-DD)"
// @Success      200  {object}  dto.Response{data=analyticsapp.RebuildResponse}
// @Failure      400  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Failure      503  {object}  dto.Response{data=analyticsapp.RebuildResponse}
// @Security     BearerAuth
// @Router       /analytics/etl/run [post]
func (h *AnalyticsHandler) RunETL(c *gin.Context) {
	var q RebuildQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	var from, to *time.Time
	if q.From != "" {
		d, err := parseDay(q.From)
		if err != nil {
			h.HandleError(c, analytics.ErrInvalidTriggerParams)
			return
		}
		from = &d
	}
	if q.To != "" {
		d, err := parseDay(q.To)
		if err != nil {
			h.HandleError(c, analytics.ErrInvalidTriggerParams)
			return
		}
		to = &d
	}

	ctx := c.Request.Context()
	if h.triggerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.triggerTimeout)
		defer cancel()
	}

	resp, err := h.service.TriggerRebuild(ctx, from, to)
	if err != nil {
		if resp != nil && resp.Written > 0 {
			h.HandleError(c, err, resp)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ProductCatalog godoc
// @Summary      Product catalog document
// @Tags         analytics
// @Produce      json
// @Param        id  path  string  true  "Product ID"
// @Success      200  {object}  dto.Response{data=analyticsapp.ProductCatalogResponse}
// @Failure      404  {object}  dto.Response
// @Security     BearerAuth
// @Router       /analytics/products/{id}/catalog [get]
func (h *AnalyticsHandler) ProductCatalog(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	entry, err := h.service.GetProductCatalog(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
