package handlers

import (
	"net/http"
	"strconv"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/middleware"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/services"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// Resource serves the CRUD routes of one resource kind.
type Resource[T models.Resource] struct {
	life     *services.Lifecycle[T]
	maxBytes int64
}

func NewResource[T models.Resource](life *services.Lifecycle[T], maxBytes int64) *Resource[T] {
	if maxBytes <= 0 {
		maxBytes = media.DefaultMaxBytes
	}
	return &Resource[T]{life: life, maxBytes: maxBytes}
}

// Register mounts the kind under its path. required rejects anonymous callers;
// optional resolves the caller when a token is present.
func (h *Resource[T]) Register(r fiber.Router, required, optional fiber.Handler) {
	g := r.Group("/" + h.life.Kind().Path)
	g.Get("/", optional, h.List)
	g.Get("/mine", required, h.Mine)
	g.Get("/:id", optional, h.Get)
	g.Post("/", required, h.Create)
	g.Put("/:id", required, h.Update)
	g.Delete("/:id", required, h.Delete)
}

// GET / ?limit=&page=&<field>=
func (h *Resource[T]) List(c *fiber.Ctx) error {
	kind := h.life.Kind()
	f := repository.Filter{Equals: map[string]string{}}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if key := string(k); kind.CanFilter(key) {
			f.Equals[key] = string(v)
		}
	})
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	if page, _ := strconv.Atoi(c.Query("page")); page > 1 {
		limit := f.Limit
		if limit <= 0 || limit > repository.MaxLimit {
			limit = repository.DefaultLimit
		}
		f.Skip = (page - 1) * limit
	}

	items, err := h.life.ListPublic(c.UserContext(), f)
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusOK, items)
}

func (h *Resource[T]) Mine(c *fiber.Ctx) error {
	items, err := h.life.ListMine(c.UserContext(), middleware.Principal(c))
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusOK, items)
}

func (h *Resource[T]) Get(c *fiber.Ctx) error {
	rec, err := h.life.Get(c.UserContext(), middleware.Principal(c), c.Params("id"))
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusOK, rec)
}

// POST / (multipart/form-data or JSON)
func (h *Resource[T]) Create(c *fiber.Ctx) error {
	in, err := decodeInput(c, h.life.Kind(), h.maxBytes)
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	rec, err := h.life.Create(c.UserContext(), middleware.Principal(c), in)
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusCreated, rec)
}

// PUT /:id (multipart/form-data or JSON)
func (h *Resource[T]) Update(c *fiber.Ctx) error {
	in, err := decodeInput(c, h.life.Kind(), h.maxBytes)
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	rec, err := h.life.Update(c.UserContext(), middleware.Principal(c), c.Params("id"), in)
	if err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusOK, rec)
}

func (h *Resource[T]) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.life.Delete(c.UserContext(), middleware.Principal(c), id); err != nil {
		return utils.JSONFailure(c, err)
	}
	return utils.JSONSuccess(c, http.StatusOK, fiber.Map{"id": id, "deleted": true})
}
