package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Backend is the blob store the client writes to. Remove of an absent key
// must succeed.
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// File is one uploaded payload as received from a request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

type Client struct {
	backend  Backend
	codec    Codec
	policies map[string]Policy
	breaker  *gobreaker.CircuitBreaker
	metrics  *metrics.Metrics
	log      *zap.Logger
	newName  func() string
}

func NewClient(backend Backend, codec Codec, policies map[string]Policy, bc BreakerConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	if bc.MaxFailures == 0 {
		bc.MaxFailures = 5
	}
	if bc.Timeout == 0 {
		bc.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "media-store",
		Interval: bc.Interval,
		Timeout:  bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.MaxFailures
		},
		// a caller giving up is not a store failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		backend:  backend,
		codec:    codec,
		policies: policies,
		breaker:  cb,
		metrics:  m,
		log:      log,
		newName:  func() string { return uuid.NewString() },
	}
}

func (c *Client) Codec() Codec { return c.codec }

// Decode returns the identifier a locator addresses, if it is one of ours.
func (c *Client) Decode(locator string) (string, bool) {
	return c.codec.Decode(locator)
}

// Check validates a payload against a policy without touching the store and
// returns the detected content type.
func (c *Client) Check(policy string, f File) (string, error) {
	p, ok := c.policies[policy]
	if !ok {
		return "", fmt.Errorf("unknown media policy %q", policy)
	}
	if len(f.Data) == 0 {
		return "", apperr.MediaPayload(fmt.Sprintf("%s is empty", displayName(f)))
	}
	if p.MaxBytes > 0 && int64(len(f.Data)) > p.MaxBytes {
		return "", apperr.MediaPayload(fmt.Sprintf("%s exceeds the %d MB size limit", displayName(f), p.MaxBytes>>20))
	}
	ct := sniff(f)
	if !p.Allows(ct) {
		return "", apperr.MediaPayload(fmt.Sprintf("file type %s is not allowed for %s", ct, p.Folder))
	}
	return ct, nil
}

// Upload stores a payload under the policy folder and returns its ref.
func (c *Client) Upload(ctx context.Context, policy string, f File) (models.MediaRef, error) {
	ct, err := c.Check(policy, f)
	if err != nil {
		c.metrics.Upload(policy, "rejected")
		return models.MediaRef{}, err
	}
	p := c.policies[policy]

	data, err := normalize(f.Data, ct, p.Transform)
	if err != nil {
		c.log.Debug("image normalisation failed, storing original",
			zap.String("policy", policy), zap.Error(err))
		data = f.Data
	}

	key := c.codec.Key(p.Folder, c.newName())
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.backend.Put(ctx, key, ct, data)
	})
	if err != nil {
		c.metrics.Upload(policy, "failed")
		return models.MediaRef{}, apperr.MediaStore("upload failed", err)
	}
	c.metrics.Upload(policy, "ok")
	return models.MediaRef{Locator: c.codec.Encode(key, extensionFor(ct)), Identifier: key}, nil
}

// Delete removes a blob by identifier. Deleting an absent blob succeeds.
// Identifiers outside the managed namespace are refused.
func (c *Client) Delete(ctx context.Context, identifier string) error {
	if identifier == "" {
		return nil
	}
	if !strings.HasPrefix(identifier, c.codec.Root+"/") {
		return apperr.Validation("identifier", fmt.Sprintf("identifier %q is outside the %s namespace", identifier, c.codec.Root))
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.backend.Remove(ctx, identifier)
	})
	if err != nil {
		c.metrics.Delete("failed")
		return apperr.MediaStore("delete failed", err)
	}
	c.metrics.Delete("ok")
	return nil
}

func sniff(f File) string {
	ct := http.DetectContentType(f.Data)
	if ct == "application/octet-stream" && f.ContentType != "" {
		ct = f.ContentType
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

func displayName(f File) string {
	if f.Name == "" {
		return "file"
	}
	return f.Name
}
