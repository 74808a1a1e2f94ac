package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/services"
	"github.com/gofiber/fiber/v2"
)

const removeMediaField = "remove_media"

// decodeInput reads a mutation request. Multipart forms carry scalar fields as
// strings, nested objects as JSON strings and files under their slot name.
// Plain JSON bodies are accepted for requests without files.
func decodeInput[T models.Resource](c *fiber.Ctx, kind *models.Kind[T], maxBytes int64) (services.Input, error) {
	in := services.Input{Fields: models.Patch{}}
	ct := string(c.Request().Header.ContentType())

	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return in, apperr.Validation("", "invalid multipart form")
		}
		for key, vals := range form.Value {
			if len(vals) == 0 {
				continue
			}
			if key == removeMediaField {
				in.Remove = splitList(vals[0])
				continue
			}
			v, err := formValue(kind, key, vals[0])
			if err != nil {
				return in, err
			}
			in.Fields[key] = v
		}
		if len(form.File) > 0 {
			in.Files = map[string][]media.File{}
		}
		for key, headers := range form.File {
			for _, fh := range headers {
				f, err := readFile(fh, maxBytes)
				if err != nil {
					return in, err
				}
				in.Files[key] = append(in.Files[key], f)
			}
		}
	case len(c.Body()) > 0:
		body := map[string]any{}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return in, apperr.Validation("", "invalid JSON body")
		}
		for key, v := range body {
			if key == removeMediaField {
				in.Remove = removeList(v)
				continue
			}
			in.Fields[key] = v
		}
	}
	return in, nil
}

func formValue[T models.Resource](kind *models.Kind[T], key, raw string) (any, error) {
	if !kind.IsJSON(key) {
		return raw, nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, apperr.Validation(key, fmt.Sprintf("%s must be valid JSON", key))
	}
	return v, nil
}

// readFile reads at most maxBytes+1 bytes so the media client can still
// reject oversized uploads by size.
func readFile(fh *multipart.FileHeader, maxBytes int64) (media.File, error) {
	f, err := fh.Open()
	if err != nil {
		return media.File{}, apperr.MediaPayload("cannot read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return media.File{}, apperr.MediaPayload("cannot read uploaded file")
	}
	return media.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func removeList(v any) []string {
	switch t := v.(type) {
	case string:
		return splitList(t)
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
