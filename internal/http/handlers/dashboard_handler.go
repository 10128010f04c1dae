package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"clubhub/internal/dashboard"
)

// EventDashboard returns the RSVP aggregation for an event.
func EventDashboard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}
		dash, err := dashboard.Load(c, d.DB, *ev, d.Config.Dashboard.TargetRatio, d.now())
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, dash)
	}
}

const wsWriteTimeout = 10 * time.Second

func (d *Deps) upgrader() *websocket.Upgrader {
	allowed := map[string]bool{}
	for _, o := range d.Config.HTTP.AllowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 8192,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// EventDashboardWS streams a fresh dashboard snapshot on connect and every poll interval.
func EventDashboardWS(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		ev, err := d.visibleEvent(c, id)
		if err != nil {
			d.respond(c, err)
			return
		}

		conn, err := d.upgrader().Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Client messages are ignored; a read error means the peer went away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(d.Config.Dashboard.PollInterval)
		defer ticker.Stop()

		for {
			dash, err := dashboard.Load(ctx, d.DB, *ev, d.Config.Dashboard.TargetRatio, d.now())
			if err != nil {
				if ctx.Err() == nil {
					d.Log.Error("dashboard refresh for event ", ev.ID, " failed: ", err)
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "dashboard unavailable"),
						time.Now().Add(wsWriteTimeout))
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(dash); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
