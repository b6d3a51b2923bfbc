package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resort-reservation/internal/config"
	"github.com/iliyamo/resort-reservation/internal/logger"
)

// CalendarCache caches successful responses of per-resource read endpoints
// in Redis and drops a resource's entries when its reservations change.
// Keys are <prefix>:res:<resource id>:<sha1 of route and query>.
type CalendarCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewCalendarCache returns a cache; a nil client or disabled config yields a
// pass-through whose invalidation is a no-op.
func NewCalendarCache(cfg config.CacheConfig, rdb *redis.Client) *CalendarCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	return &CalendarCache{cfg: cfg, rdb: rdb}
}

func (cc *CalendarCache) enabled() bool { return cc != nil && cc.cfg.Enabled && cc.rdb != nil }

func (cc *CalendarCache) resourcePrefix(resourceID string) string {
	return cc.cfg.Prefix + ":res:" + resourceID + ":"
}

func (cc *CalendarCache) key(c echo.Context) string {
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s%x", cc.resourcePrefix(c.Param("id")), sum[:])
}

// InvalidateResource deletes every cached response for resourceID.
func (cc *CalendarCache) InvalidateResource(ctx context.Context, resourceID string) {
	if !cc.enabled() || resourceID == "" {
		return
	}
	iter := cc.rdb.Scan(ctx, 0, cc.resourcePrefix(resourceID)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.WarnLogger.WithError(err).WithField("resource_id", resourceID).Warn("cache: scan failed")
		return
	}
	if len(keys) > 0 {
		_ = cc.rdb.Del(ctx, keys...).Err()
	}
}

// Middleware serves cached responses for routes with an :id resource param.
func (cc *CalendarCache) Middleware() echo.MiddlewareFunc {
	if !cc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(cc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cc.cfg.Methods[strings.ToUpper(c.Request().Method)] || c.Param("id") == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cc.key(c)

			if bs, err := cc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			// truncated bodies are never stored
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				_ = cc.rdb.Set(context.WithoutCancel(ctx), key, payload, cc.cfg.TTL).Err()
			}
			return nil
		}
	}
}

// captureWriter copies the response body up to limit bytes while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
