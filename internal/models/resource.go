package models

// ResourceType says where the renderable asset of a collectible comes from.
type ResourceType string

const (
	ResourceWalrus   ResourceType = "walrus"
	ResourceDirect   ResourceType = "direct"
	ResourceImage    ResourceType = "image"
	ResourceGeometry ResourceType = "geometry"
)

// Code returns the single-letter code used by the compact wire format.
func (t ResourceType) Code() string {
	switch t {
	case ResourceWalrus:
		return "w"
	case ResourceDirect:
		return "d"
	case ResourceImage:
		return "i"
	case ResourceGeometry:
		return "g"
	}
	return string(t)
}

// ResourceTypeFromCode is the inverse of Code. Unknown codes are passed through, so a
// blob written by a newer client keeps its type verbatim.
func ResourceTypeFromCode(code string) ResourceType {
	switch code {
	case "w":
		return ResourceWalrus
	case "d":
		return ResourceDirect
	case "i":
		return ResourceImage
	case "g":
		return ResourceGeometry
	}
	return ResourceType(code)
}

// ModelFormat is the sniffed file format of a direct model reference.
type ModelFormat string

const (
	FormatGLB ModelFormat = "glb"
	FormatOBJ ModelFormat = "obj"
	FormatSTL ModelFormat = "stl"
)

// ResourceDescriptor is the rendering strategy chosen for one collectible. It is recomputed
// from holdings and never persisted directly.
type ResourceDescriptor struct {
	Type   ResourceType `json:"type"`
	BlobID string       `json:"blobId,omitempty"`
	// ModelURL is the model URL for direct resources and the image URL for image resources.
	ModelURL string      `json:"modelUrl,omitempty"`
	Format   ModelFormat `json:"format,omitempty"`
	// Color is the placeholder color (#rrggbb) for geometry resources.
	Color string `json:"color,omitempty"`
}
