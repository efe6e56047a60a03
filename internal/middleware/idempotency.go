package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/cache"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "X-Idempotency-Replayed"

	idempotencyLockTTL = 30 * time.Second
	processingMarker   = "processing"
	maxIdempotentBody  = 1 << 20
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
	RequestHash string `json:"requestHash"`
}

// hashBody reads the request body, puts it back for the handler and returns
// its sha256.
func hashBody(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.Body == nil {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
	_ = r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST that carried the same
// Idempotency-Key. Keys are scoped by user and path. A request that is
// still running under the key gets 409, and a key reused with a different
// body gets 422. Server errors are not stored so the client may retry them.
func Idempotency(c cache.Cache, ttl time.Duration, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyHeader)
			if r.Method != http.MethodPost || header == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, _ := UserIDFromContext(r.Context())
			key := "idempotency:" + userID + ":" + r.URL.Path + ":" + header
			ctx := r.Context()

			hash, err := hashBody(w, r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", "request body could not be read")
				return
			}

			raw, ok, err := c.Get(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("Idempotency lookup failed")
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				replay(w, raw, hash)
				return
			}

			acquired, err := c.SetNX(ctx, key, []byte(processingMarker+":"+hash), idempotencyLockTTL)
			if err != nil {
				logger.WithError(err).Warn("Idempotency lock failed")
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				writeError(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is in progress")
				return
			}

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			if cw.status >= http.StatusInternalServerError || cw.status == 0 {
				_ = c.Delete(ctx, key)
				return
			}
			stored, err := json.Marshal(storedResponse{
				Status:      cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				err = c.Set(ctx, key, stored, ttl)
			}
			if err != nil {
				logger.WithError(err).Warn("Idempotency store failed")
			}
		})
	}
}

func replay(w http.ResponseWriter, raw []byte, hash string) {
	if strings.HasPrefix(string(raw), processingMarker) {
		writeError(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is in progress")
		return
	}
	var stored storedResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		writeError(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is in progress")
		return
	}
	if stored.RequestHash != hash {
		writeError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", "idempotency key was used with a different request body")
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
