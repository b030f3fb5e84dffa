package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/export"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

// CSVExporter uploads a CSV report
type CSVExporter interface {
	WriteCSV(ctx context.Context, kind, scope string, header []string, rows [][]string) (*export.Result, error)
}

// workOrderFilter is parsed from the query string
type workOrderFilter struct {
	TenantID *uuid.UUID
	Status   string
	From     *time.Time
	To       *time.Time
}

var workOrderHeader = []string{"number", "status", "customer", "vehicle", "description", "total", "opened_at", "closed_at"}

// handleListWorkOrders lists work orders of the principal's tenant
func handleListWorkOrders(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, _, ok := queryWorkOrders(c, core.DB)
		if !ok {
			return
		}
		utils.OKResponse(c, "Work orders retrieved successfully", orders)
	}
}

// handleGetWorkOrder returns one work order
func handleGetWorkOrder(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid work order ID")
			return
		}

		var order models.WorkOrder
		err = core.DB.WithContext(c.Request.Context()).Where("id = ?", id).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Work order not found")
			return
		}
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := tenancy.CheckOwnership(middleware.PrincipalFromContext(c), order.TenantID); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Work order retrieved successfully", order)
	}
}

// handleExportWorkOrders writes the filtered work orders to object storage
func handleExportWorkOrders(core *server.Core, exporter CSVExporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, scope, ok := queryWorkOrders(c, core.DB)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		rows := make([][]string, 0, len(orders))
		for _, o := range orders {
			closed := ""
			if o.ClosedAt != nil {
				closed = o.ClosedAt.UTC().Format(time.RFC3339)
			}
			rows = append(rows, []string{
				o.Number,
				string(o.Status),
				o.CustomerName,
				o.Vehicle,
				o.Description,
				strconv.FormatFloat(o.Total, 'f', 2, 64),
				o.OpenedAt.UTC().Format(time.RFC3339),
				closed,
			})
		}

		scopeKey := ""
		if scope != nil {
			scopeKey = scope.String()
		}
		result, err := exporter.WriteCSV(ctx, "work-orders", scopeKey, workOrderHeader, rows)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		entry := middleware.AuditEntry(c, "operations.export", "work_orders", result.Key)
		entry.TenantID = scope
		entry.After = map[string]interface{}{"key": result.Key, "rows": result.Rows, "status": c.Query("status")}
		core.Audit.Record(ctx, actor, entry)

		utils.OKResponse(c, "Work orders exported", result)
	}
}

// queryWorkOrders applies tenant scope and filters and returns the scope it
// used. It writes the error response itself.
func queryWorkOrders(c *gin.Context, db *gorm.DB) ([]models.WorkOrder, *uuid.UUID, bool) {
	f, err := parseWorkOrderFilter(c)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return nil, nil, false
	}
	scope, err := tenancy.EnforceTenantScope(middleware.PrincipalFromContext(c), f.TenantID)
	if err != nil {
		utils.AbortWithError(c, err)
		return nil, nil, false
	}

	q := db.WithContext(c.Request.Context()).Model(&models.WorkOrder{}).Scopes(tenancy.Scope(scope))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("opened_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("opened_at <= ?", *f.To)
	}

	var orders []models.WorkOrder
	if err := q.Order("opened_at DESC").Find(&orders).Error; err != nil {
		utils.AbortWithError(c, err)
		return nil, nil, false
	}
	return orders, scope, true
}

func parseWorkOrderFilter(c *gin.Context) (workOrderFilter, error) {
	var f workOrderFilter
	if raw := c.Query("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, errors.New("Invalid tenant_id")
		}
		f.TenantID = &id
	}
	f.Status = c.Query("status")
	var err error
	if f.From, err = utils.ParseDateBound(c.Query("from"), false); err != nil {
		return f, errors.New("Invalid from date")
	}
	if f.To, err = utils.ParseDateBound(c.Query("to"), true); err != nil {
		return f, errors.New("Invalid to date")
	}
	return f, nil
}
