package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clubhub/internal/models"
)

const (
	defaultAuditPage = 20
	maxAuditPage     = 100
)

// ListAudit pages through audit rows newest first. The cursor is the id of
// the last row returned; pass it back as after_id for the next page.
func ListAudit(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		pageSize := boundedInt(c.Query("limit"), defaultAuditPage, maxAuditPage)

		q := d.DB.WithContext(c).Model(&models.AuditLog{})
		if cursor, err := strconv.ParseInt(c.Query("after_id"), 10, 64); err == nil && cursor > 0 {
			q = q.Where("id < ?", cursor)
		}
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			pattern := "%" + term + "%"
			q = q.Where("(initiator_name LIKE ? OR action LIKE ? OR resource_type LIKE ? OR ip LIKE ?)",
				pattern, pattern, pattern, pattern)
		}
		if kind := c.Query("resource_type"); kind != "" {
			q = q.Where("resource_type = ?", kind)
		}
		if actor, err := strconv.ParseInt(c.Query("profile_id"), 10, 64); err == nil && actor > 0 {
			q = q.Where("profile_id = ?", actor)
		}
		if raw := c.Query("since"); raw != "" {
			since, err := parseTimeParam(raw)
			if err != nil {
				badRequest(c, fmt.Errorf("since: %w", err))
				return
			}
			q = q.Where("created_at >= ?", since)
		}

		var entries []models.AuditLog
		if err := q.Order("id DESC").Limit(pageSize + 1).Find(&entries).Error; err != nil {
			d.respond(c, err)
			return
		}

		var next *int64
		if len(entries) > pageSize {
			entries = entries[:pageSize]
			last := entries[pageSize-1].ID
			next = &last
		}
		c.JSON(http.StatusOK, gin.H{"logs": entries, "next_cursor": next})
	}
}

// boundedInt parses a positive page size, falling back to def when absent or out of range.
func boundedInt(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return def
	}
	return n
}
