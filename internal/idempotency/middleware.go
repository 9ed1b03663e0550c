package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderKey is the request header naming the idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplayed marks a response served from the store.
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
	// pendingTTL bounds a reservation left behind by a request that never finished.
	pendingTTL = time.Minute
)

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response for a repeated Idempotency-Key. Requests without
// the header pass through. A key is reserved before the handler runs, so a concurrent
// duplicate gets 409 and a reuse with a different body gets 422. Only 2xx and 400
// responses are stored, so faults stay retryable.
func Middleware(store Store, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	reservation := min(ttl, pendingTTL)
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxKeyLength {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key is too long"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)

		ctx := c.Request.Context()
		pending := Record{
			Key:        c.Request.Method + " " + c.FullPath() + " " + key,
			BodyHash:   hex.EncodeToString(sum[:]),
			OccurredAt: time.Now().UTC(),
		}
		reserved, err := store.Reserve(ctx, pending, reservation)
		if err != nil {
			log.Warn("idempotency reservation failed, processing request", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			replay(c, store, pending, log)
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// The outcome is recorded even when the client has gone away.
		ctx = context.WithoutCancel(ctx)
		status := recorder.Status()
		if !storable(status) {
			if err := store.Release(ctx, pending.Key); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
			return
		}
		pending.Status = status
		pending.ContentType = recorder.Header().Get("Content-Type")
		pending.Body = recorder.buf.Bytes()
		pending.OccurredAt = time.Now().UTC()
		if err := store.Save(ctx, pending, ttl); err != nil {
			log.Warn("failed to store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, store Store, want Record, log *zap.Logger) {
	rec, found, err := store.Get(c.Request.Context(), want.Key)
	if err != nil {
		log.Warn("idempotency lookup failed", zap.Error(err))
	}
	switch {
	case err != nil || !found:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is in progress"})
	case rec.BodyHash != want.BodyHash:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key was already used with a different request body"})
	case rec.Pending():
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is in progress"})
	default:
		c.Header(HeaderReplayed, "true")
		c.Data(rec.Status, rec.ContentType, rec.Body)
		c.Abort()
	}
}

func storable(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusBadRequest
}
