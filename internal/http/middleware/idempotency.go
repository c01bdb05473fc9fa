// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for create (POST) routes. A
// client may send a UUID key; the first successful response for
// (user, method+path, key) is stored and any retry within the TTL receives
// the stored status and body with "Idempotency-Replayed: true" instead of
// creating the resource again. A retry that races the original request gets
// 409 while the original is still running.
//
// Persistence is decoupled through the IdempotencyLookup/IdempotencySave
// function types so the middleware does not depend on the repo package.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey is the request header carrying the client key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed marks responses served from the store.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// maxStoredBody bounds what is kept for replay; larger responses are served
// normally but not recorded.
const maxStoredBody = 256 << 10

// IdempotencyLookup returns the stored response for (userID, scope, key) if
// one is still valid at now.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (status int, body []byte, found bool, err error)

// IdempotencySave records a successful response.
type IdempotencySave func(ctx context.Context, userID, scope, key string, status int, body []byte) error

// IdempotencyOptions wires the store into Idempotency.
type IdempotencyOptions struct {
	Lookup IdempotencyLookup
	Save   IdempotencySave
	Now    func() time.Time
}

// GetIdempotencyKey returns the validated key stashed by Idempotency.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the response was served from the store.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Idempotency returns the middleware. Requests other than POST, requests
// without the header and anonymous requests pass through untouched, since
// the key is scoped to the authenticated user.
func Idempotency(opts IdempotencyOptions) gin.HandlerFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var inflight sync.Map

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if _, err := uuid.Parse(key); err != nil {
			abortJSON(c, http.StatusBadRequest, "bad_request", "Idempotency-Key must be a UUID")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		u, ok := CurrentUser(c)
		if !ok {
			c.Next()
			return
		}
		scope := c.Request.Method + " " + c.Request.URL.Path
		ctx := c.Request.Context()

		if opts.Lookup != nil {
			status, body, found, err := opts.Lookup(ctx, u.ID, scope, key, now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if found {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				c.Header(HeaderIdempotencyReplayed, "true")
				c.Data(status, "application/json; charset=utf-8", body)
				c.Abort()
				return
			}
		}

		slot := u.ID + "\x00" + scope + "\x00" + key
		if _, busy := inflight.LoadOrStore(slot, struct{}{}); busy {
			abortJSON(c, http.StatusConflict, "conflict", "a request with this Idempotency-Key is already in progress")
			return
		}
		defer inflight.Delete(slot)

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if opts.Save == nil || status < 200 || status >= 300 || w.overflow {
			return
		}
		if err := opts.Save(ctx, u.ID, scope, key, status, w.buf.Bytes()); err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
		}
	}
}

// captureWriter tees the response body so it can be stored for replay.
type captureWriter struct {
	gin.ResponseWriter
	buf      bytes.Buffer
	overflow bool
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.keep(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.keep([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) keep(b []byte) {
	if w.overflow {
		return
	}
	if w.buf.Len()+len(b) > maxStoredBody {
		w.overflow = true
		w.buf.Reset()
		return
	}
	w.buf.Write(b)
}
