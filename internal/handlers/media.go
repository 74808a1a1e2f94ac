package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Decoder interface {
	Decode(locator string) (string, bool)
}

type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
}

// Media redirects locator paths to short-lived signed URLs.
type Media struct {
	codec Decoder
	store Presigner
	cache URLCache
	ttl   time.Duration
	log   *zap.Logger
}

func NewMedia(codec Decoder, store Presigner, cache URLCache, ttl time.Duration, log *zap.Logger) *Media {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Media{codec: codec, store: store, cache: cache, ttl: ttl, log: log}
}

// GET /media/* -> 302 to a presigned URL
func (h *Media) Redirect(c *fiber.Ctx) error {
	id, ok := h.codec.Decode(c.Path())
	if !ok {
		return utils.JSONError(c, http.StatusNotFound, "media not found")
	}
	ctx := c.UserContext()
	if h.cache != nil {
		if url, hit := h.cache.Get(ctx, id); hit {
			return c.Redirect(url, http.StatusFound)
		}
	}
	url, err := h.store.PresignGet(ctx, id, h.ttl)
	if err != nil {
		h.log.Error("presign failed", zap.String("identifier", id), zap.Error(err))
		return utils.JSONError(c, http.StatusBadGateway, "media store unavailable")
	}
	if h.cache != nil {
		// expire well before the signature does
		if err := h.cache.Set(ctx, id, url, h.ttl/2); err != nil {
			h.log.Debug("cache presigned url", zap.Error(err))
		}
	}
	return c.Redirect(url, http.StatusFound)
}

func Health(c *fiber.Ctx) error {
	return utils.JSONSuccess(c, http.StatusOK, fiber.Map{"service": "wall-of-humanity"})
}
