// Package classifier decides how a collectible's free-form metadata should be rendered.
package classifier

import (
	"fmt"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"

	"gallery-service/internal/models"
)

// Candidate keys, in priority order within each resource class.
var (
	blobKeys  = []string{"blob_id", "walrus_blob_id", "blob", "walrus_id", "id"}
	modelKeys = []string{"glb_url", "model_url", "3d_url", "obj_url", "stl_url", "glb", "obj", "stl", "model"}
	imageKeys = []string{"image_url", "image", "img", "picture", "photo", "url"}
)

// sentinel values some minting tools write instead of omitting a field
var imageSentinels = map[string]bool{
	"None":      true,
	"null":      true,
	"undefined": true,
}

// Classify picks exactly one rendering strategy for item. Walrus blobs win over direct models,
// which win over images; anything else becomes a geometry placeholder.
func Classify(item models.KioskItem) models.ResourceDescriptor {
	sources := metadataSources(item)

	if blobID, ok := firstValue(sources, blobKeys, nil); ok {
		return models.ResourceDescriptor{Type: models.ResourceWalrus, BlobID: blobID}
	}
	if modelURL, ok := firstValue(sources, modelKeys, nil); ok {
		return models.ResourceDescriptor{
			Type:     models.ResourceDirect,
			ModelURL: modelURL,
			Format:   SniffModelFormat(modelURL),
		}
	}
	if imageURL, ok := firstValue(sources, imageKeys, imageSentinels); ok {
		return models.ResourceDescriptor{Type: models.ResourceImage, ModelURL: imageURL}
	}
	return models.ResourceDescriptor{
		Type:  models.ResourceGeometry,
		Color: PlaceholderColor(item.ObjectID),
	}
}

// SniffModelFormat maps a model URL's extension to a format, defaulting to glb.
func SniffModelFormat(modelURL string) models.ModelFormat {
	u := strings.ToLower(modelURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch path.Ext(u) {
	case ".glb", ".gltf":
		return models.FormatGLB
	case ".obj":
		return models.FormatOBJ
	case ".stl":
		return models.FormatSTL
	}
	return models.FormatGLB
}

// PlaceholderColor derives a stable #rrggbb color from an object id. The hue is spread
// over the full range while saturation and lightness stay in a readable band.
func PlaceholderColor(objectID string) string {
	h := xxhash.Sum64String(objectID)
	hue := float64(h%360) / 360
	sat := 0.55 + float64((h>>16)%20)/100
	light := 0.45 + float64((h>>32)%15)/100
	r, g, b := hslToRGB(hue, sat, light)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// ResolveName returns the display name for item, falling back to its title, the last
// segment of its type string and finally "Item N".
func ResolveName(item models.KioskItem, index int) string {
	sources := metadataSources(item)
	if name, ok := firstValue(sources, []string{"name"}, nil); ok {
		return name
	}
	if title, ok := firstValue(sources, []string{"title"}, nil); ok {
		return title
	}
	if item.Type != "" {
		t := item.Type
		if i := strings.Index(t, "<"); i >= 0 {
			t = t[:i]
		}
		parts := strings.Split(t, "::")
		if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
			return last
		}
	}
	return fmt.Sprintf("Item %d", index+1)
}

// metadataSources returns the maps to scan, display data first.
func metadataSources(item models.KioskItem) []map[string]any {
	if item.Display == nil && item.Content == nil {
		if item.Data == nil {
			return nil
		}
		return []map[string]any{item.Data}
	}
	var out []map[string]any
	if item.Display != nil {
		out = append(out, item.Display)
	}
	if item.Content != nil {
		out = append(out, item.Content)
	}
	return out
}

// firstValue scans each source in turn for the keys in order and returns the first
// non-empty string value not listed in reject.
func firstValue(sources []map[string]any, keys []string, reject map[string]bool) (string, bool) {
	for _, src := range sources {
		for _, key := range keys {
			raw, ok := src[key]
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" || reject[s] {
				continue
			}
			return s, true
		}
	}
	return "", false
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	conv := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return uint8(v*255 + 0.5)
	}
	return conv(h + 1.0/3), conv(h), conv(h - 1.0/3)
}
