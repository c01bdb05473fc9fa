package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/peerq/peerq-api/internal/http/middleware"
	"github.com/peerq/peerq-api/internal/realtime"
)

// LiveOptions configures the websocket endpoint.
type LiveOptions struct {
	// AllowedOrigins lists browser origins allowed to connect. Empty allows
	// any origin; "*" does too.
	AllowedOrigins []string
	PingEvery      time.Duration
}

// Live godoc
// @ID          liveEvents
// @Summary     Live notification stream
// @Description Upgrades to a websocket. Authenticate with the token query parameter. Frames are
// @Description {"event":"notification","data":{...}}; the first frame is {"event":"connected"}.
// @Tags        Notifications
// @Param       token  query  string  true  "JWT"
// @Success     101    {string}  string  "Switching Protocols"
// @Failure     401    {object}  handlers.ErrorResponse
// @Router      /ws [get]
func Live(hub *realtime.Hub, opts LiveOptions) gin.HandlerFunc {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return func(c *gin.Context) {
		u, found := middleware.CurrentUser(c)
		if !found {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "no token provided")
			return
		}
		if !websocket.IsWebSocketUpgrade(c.Request) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "websocket upgrade required")
			return
		}
		conn, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			middleware.LoggerFrom(c).Debug().Err(err).Msg("ws upgrade failed")
			c.Abort()
			return
		}
		middleware.LoggerFrom(c).Debug().Str("user_id", u.ID).Msg("ws connected")
		hub.Serve(c.Request.Context(), conn, u.ID, opts.PingEvery)
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
