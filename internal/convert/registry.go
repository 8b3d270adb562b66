package convert

import "github.com/lehigh-university-libraries/labelme2coco/internal/coco"

// Registry assigns category ids by first appearance of a name: the first
// new name gets 1, the next 2, and so on. It is not safe for concurrent use.
type Registry struct {
	ids        map[string]int
	categories []coco.Category
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// Resolve returns the id of name, allocating the next id for a new name.
func (r *Registry) Resolve(name string) int {
	id, _ := r.resolve(name)
	return id
}

// resolve also reports whether name was allocated by this call
func (r *Registry) resolve(name string) (int, bool) {
	if id, ok := r.ids[name]; ok {
		return id, false
	}
	id := len(r.ids) + 1
	r.ids[name] = id
	r.categories = append(r.categories, coco.Category{
		ID:            id,
		Name:          name,
		Supercategory: coco.Supercategory,
	})
	return id, true
}

// Categories returns the known categories in allocation order.
func (r *Registry) Categories() []coco.Category {
	out := make([]coco.Category, len(r.categories))
	copy(out, r.categories)
	return out
}
