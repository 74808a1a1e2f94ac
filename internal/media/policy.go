package media

const DefaultMaxBytes int64 = 5 << 20

// Transform describes how images uploaded under a policy are normalised.
type Transform struct {
	Width    int
	Height   int
	Fill     bool // crop to exactly Width x Height
	MaxWidth int  // shrink wider images, keep aspect ratio
}

// Policy is one row of the upload table: where a slot's blobs live and what
// they may contain.
type Policy struct {
	Folder       string
	ContentTypes []string
	MaxBytes     int64
	Transform    *Transform
}

func (p Policy) Allows(contentType string) bool {
	for _, ct := range p.ContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

var (
	imageTypes       = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	photoTypes       = []string{"image/jpeg", "image/png"}
	certificateTypes = []string{"image/jpeg", "image/png", "application/pdf"}
)

// DefaultPolicies is the upload table keyed by policy name. maxBytes <= 0
// selects DefaultMaxBytes.
func DefaultPolicies(maxBytes int64) map[string]Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return map[string]Policy{
		"avatars": {
			Folder:       "avatars",
			ContentTypes: photoTypes,
			MaxBytes:     maxBytes,
			Transform:    &Transform{Width: 400, Height: 400, Fill: true},
		},
		"donations": {
			Folder:       "donations",
			ContentTypes: imageTypes,
			MaxBytes:     maxBytes,
			Transform:    &Transform{MaxWidth: 1000},
		},
		"free-food": {
			Folder:       "free-food",
			ContentTypes: photoTypes,
			MaxBytes:     maxBytes,
			Transform:    &Transform{Width: 800, Height: 600, Fill: true},
		},
		"ngo-logos": {
			Folder:       "ngo-logos",
			ContentTypes: imageTypes,
			MaxBytes:     maxBytes,
			Transform:    &Transform{MaxWidth: 1000},
		},
		"ngo-certificates": {
			Folder:       "ngo-certificates",
			ContentTypes: certificateTypes,
			MaxBytes:     maxBytes,
		},
	}
}

// Folders lists the folders of a policy table.
func Folders(policies map[string]Policy) []string {
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.Folder)
	}
	return out
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

func extensionFor(contentType string) string {
	return extensions[contentType]
}
