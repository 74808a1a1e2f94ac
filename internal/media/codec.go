package media

import (
	"net/url"
	"path"
	"strings"
)

const DefaultRoot = "wall-of-humanity"

// Codec derives object keys and public locators for the managed namespace and
// recovers the key from a locator.
type Codec struct {
	BaseURL string
	Root    string
}

func NewCodec(baseURL, root string) Codec {
	if root == "" {
		root = DefaultRoot
	}
	return Codec{BaseURL: strings.TrimRight(baseURL, "/"), Root: strings.Trim(root, "/")}
}

// Key is the store-internal identifier of a blob.
func (c Codec) Key(folder, name string) string {
	return path.Join(c.Root, folder, name)
}

// Prefix is the listing prefix of a folder.
func (c Codec) Prefix(folder string) string {
	return path.Join(c.Root, folder) + "/"
}

// Encode builds the public locator of a stored blob.
func (c Codec) Encode(key, ext string) string {
	return c.BaseURL + "/" + key + ext
}

// Decode returns the identifier addressed by a locator. ok is false when the
// locator lies outside the managed namespace, such as a placeholder image.
// Locators under BaseURL are decoded relative to it. Any other locator is
// searched for the first Root segment.
func (c Codec) Decode(locator string) (identifier string, ok bool) {
	p := locator
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if rest, found := c.trimBase(p); found {
		if segs := strings.Split(rest, "/"); segs[0] == c.Root {
			return c.identifier(segs)
		}
	}

	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if s == c.Root {
			return c.identifier(segs[i:])
		}
	}
	return "", false
}

// trimBase strips BaseURL, or its path for relative locators, from p.
func (c Codec) trimBase(p string) (string, bool) {
	if c.BaseURL == "" {
		return "", false
	}
	if rest, found := strings.CutPrefix(p, c.BaseURL+"/"); found {
		return rest, true
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Path == "" || u.Path == "/" || !strings.HasPrefix(p, "/") {
		return "", false
	}
	return strings.CutPrefix(p, strings.TrimRight(u.Path, "/")+"/")
}

// identifier joins segs, which start at Root, dropping the final extension.
func (c Codec) identifier(segs []string) (string, bool) {
	if len(segs) < 2 {
		return "", false
	}
	rest := append([]string(nil), segs...)
	last := rest[len(rest)-1]
	if ext := path.Ext(last); ext != "" && ext != last {
		rest[len(rest)-1] = strings.TrimSuffix(last, ext)
	}
	if rest[len(rest)-1] == "" {
		return "", false
	}
	return strings.Join(rest, "/"), true
}
