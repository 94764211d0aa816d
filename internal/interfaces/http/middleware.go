package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/apperr"
	"github.com/officesync/timeline/internal/domain/entity"
)

// ActorHeader carries the id of the authenticated user, set by the gateway
// in front of this service.
const ActorHeader = "X-Actor-ID"

const actorKey = "actor"

// actorMiddleware resolves the acting staff member from ActorHeader
func actorMiddleware(staff port.StaffDirectory, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "missing "+ActorHeader+" header")
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			abort(c, http.StatusBadRequest, "invalid "+ActorHeader+" header")
			return
		}

		member, err := staff.GetByID(c.Request.Context(), id)
		if err != nil {
			logger.Error("Failed to resolve actor", "error", err, "actor_id", id)
			abort(c, http.StatusInternalServerError, apperr.Message(err))
			return
		}
		if member == nil || !member.IsActive {
			abort(c, http.StatusUnauthorized, "unknown or inactive user")
			return
		}

		c.Set(actorKey, entity.ActorFromStaff(member))
		c.Next()
	}
}

func actorFrom(c *gin.Context) *entity.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*entity.Actor)
	return actor
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg})
}
