package catalog

import "github.com/google/uuid"

// AvailabilityMatrix indexes which color/size combinations of a product can
// be bought. It is immutable once built and safe for concurrent reads.
//
// Fallback policy: when a selection becomes invalid, the Best* methods pick
// the first valid value in variant insertion order, then the first value of
// that dimension overall, then "".
type AvailabilityMatrix struct {
	colors       []string
	sizes        []string
	combos       map[VariantKey]uuid.UUID
	images       map[string]string
	primaryImage string
}

// NewAvailabilityMatrix builds the matrix from a product's variants in their
// stored order. Inactive variants are ignored; out-of-stock variants
// contribute their dimensions but no valid combination.
func NewAvailabilityMatrix(variants []Variant, primaryImage string) *AvailabilityMatrix {
	m := &AvailabilityMatrix{
		combos:       make(map[VariantKey]uuid.UUID),
		images:       make(map[string]string),
		primaryImage: primaryImage,
	}
	seenColor := make(map[string]struct{})
	seenSize := make(map[string]struct{})

	for i := range variants {
		v := &variants[i]
		if !v.IsActive {
			continue
		}
		key := v.Key()
		if key.Color != "" {
			if _, ok := seenColor[key.Color]; !ok {
				seenColor[key.Color] = struct{}{}
				m.colors = append(m.colors, key.Color)
			}
			if _, ok := m.images[key.Color]; !ok && v.Image != "" {
				m.images[key.Color] = v.Image
			}
		}
		if key.Size != "" {
			if _, ok := seenSize[key.Size]; !ok {
				seenSize[key.Size] = struct{}{}
				m.sizes = append(m.sizes, key.Size)
			}
		}
		if v.StockCount > 0 {
			if _, ok := m.combos[key]; !ok {
				m.combos[key] = v.ID
			}
		}
	}
	return m
}

// Colors returns every distinct color in insertion order
func (m *AvailabilityMatrix) Colors() []string {
	return append([]string(nil), m.colors...)
}

// Sizes returns every distinct size in insertion order
func (m *AvailabilityMatrix) Sizes() []string {
	return append([]string(nil), m.sizes...)
}

// AvailableColors returns the colors that form an in-stock combination with
// size. With no size selected every color is returned, whether or not the
// product has a size dimension; use IsComboValid(color, "") to test stock
// on color-only products.
func (m *AvailabilityMatrix) AvailableColors(size string) []string {
	if size == "" {
		return m.Colors()
	}
	out := make([]string, 0, len(m.colors))
	for _, c := range m.colors {
		if m.IsComboValid(c, size) {
			out = append(out, c)
		}
	}
	return out
}

// AvailableSizes is the mirror of AvailableColors
func (m *AvailabilityMatrix) AvailableSizes(color string) []string {
	if color == "" {
		return m.Sizes()
	}
	out := make([]string, 0, len(m.sizes))
	for _, s := range m.sizes {
		if m.IsComboValid(color, s) {
			out = append(out, s)
		}
	}
	return out
}

// IsComboValid reports whether an in-stock variant exists for the pair
func (m *AvailabilityMatrix) IsComboValid(color, size string) bool {
	_, ok := m.combos[NewVariantKey(color, size)]
	return ok
}

// VariantID returns the variant id for a valid combination
func (m *AvailabilityMatrix) VariantID(color, size string) (uuid.UUID, bool) {
	id, ok := m.combos[NewVariantKey(color, size)]
	return id, ok
}

// BestColorForSize returns the first color valid with size, else the first
// color, else "".
func (m *AvailabilityMatrix) BestColorForSize(size string) string {
	for _, c := range m.colors {
		if m.IsComboValid(c, size) {
			return c
		}
	}
	if len(m.colors) > 0 {
		return m.colors[0]
	}
	return ""
}

// BestSizeForColor returns the first size valid with color, else the first
// size, else "".
func (m *AvailabilityMatrix) BestSizeForColor(color string) string {
	for _, s := range m.sizes {
		if m.IsComboValid(color, s) {
			return s
		}
	}
	if len(m.sizes) > 0 {
		return m.sizes[0]
	}
	return ""
}

// BestImage returns the first variant image for color, else the product's
// primary image.
func (m *AvailabilityMatrix) BestImage(color string) string {
	if img, ok := m.images[color]; ok {
		return img
	}
	return m.primaryImage
}
