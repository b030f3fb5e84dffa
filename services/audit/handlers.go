package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/audit"
	"github.com/tallerops/admin-console/shared/export"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

// exportLimit caps how many records one export may contain
const exportLimit = 1000

// CSVExporter uploads a CSV report
type CSVExporter interface {
	WriteCSV(ctx context.Context, kind, scope string, header []string, rows [][]string) (*export.Result, error)
}

var auditHeader = []string{"id", "created_at", "actor_id", "actor_name", "actor_email", "tenant_id", "action", "resource_type", "resource_id", "ip_address", "before", "after"}

// handleQueryAudit returns audit records visible to the principal
func handleQueryAudit(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseFilter(c)
		if err != nil {
			utils.BadRequestResponse(c, err.Error())
			return
		}

		records, err := core.Audit.Query(c.Request.Context(), filter, middleware.PrincipalFromContext(c))
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Audit records retrieved successfully", records)
	}
}

// handleGetAudit returns one record if it belongs to the principal's tenant
// or to no tenant at all
func handleGetAudit(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			utils.BadRequestResponse(c, "Invalid audit record ID")
			return
		}

		var record models.AuditRecord
		err = core.DB.WithContext(c.Request.Context()).Where("id = ?", id).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFoundResponse(c, "Audit record not found")
			return
		}
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if err := tenancy.CheckOptionalOwnership(middleware.PrincipalFromContext(c), record.TenantID); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Audit record retrieved successfully", record)
	}
}

// handleExportAudit writes the filtered records to object storage
func handleExportAudit(core *server.Core, exporter CSVExporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseFilter(c)
		if err != nil {
			utils.BadRequestResponse(c, err.Error())
			return
		}
		filter.Limit = exportLimit
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		records, err := core.Audit.Query(ctx, filter, actor)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		scope := ""
		if !actor.Role.IsGlobal() && actor.TenantID != nil {
			scope = actor.TenantID.String()
		} else if filter.TenantID != nil {
			scope = filter.TenantID.String()
		}
		result, err := exporter.WriteCSV(ctx, "audit", scope, auditHeader, auditRows(records))
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		entry := middleware.AuditEntry(c, "audit.export", "audit_log", result.Key)
		entry.After = map[string]interface{}{"key": result.Key, "rows": result.Rows}
		core.Audit.Record(ctx, actor, entry)

		utils.OKResponse(c, "Audit records exported", result)
	}
}

func auditRows(records []models.AuditRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
			idString(r.ActorID),
			r.ActorName,
			r.ActorEmail,
			idString(r.TenantID),
			r.Action,
			r.ResourceType,
			r.ResourceID,
			r.IPAddress,
			string(r.Before),
			string(r.After),
		})
	}
	return rows
}

func parseFilter(c *gin.Context) (audit.Filter, error) {
	var f audit.Filter
	var err error
	if f.TenantID, err = parseID(c.Query("tenant_id")); err != nil {
		return f, errors.New("Invalid tenant_id")
	}
	if f.ActorID, err = parseID(c.Query("actor_id")); err != nil {
		return f, errors.New("Invalid actor_id")
	}
	f.Action = c.Query("action")
	f.ResourceType = c.Query("resource_type")
	if f.From, err = utils.ParseDateBound(c.Query("from"), false); err != nil {
		return f, errors.New("Invalid from date")
	}
	if f.To, err = utils.ParseDateBound(c.Query("to"), true); err != nil {
		return f, errors.New("Invalid to date")
	}
	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			return f, errors.New("Invalid limit")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if f.Offset, err = strconv.Atoi(raw); err != nil || f.Offset < 0 {
			return f, errors.New("Invalid offset")
		}
	}
	return f, nil
}

func parseID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
