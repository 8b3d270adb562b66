package convert

import (
	"fmt"

	"github.com/lehigh-university-libraries/labelme2coco/internal/coco"
)

// Merger accumulates partial results into one dataset. Annotation ids are
// renumbered 1.. in the order partials are added. Category ids are assigned
// here, by name, in first-seen order; the local ids partials carry are
// discarded, so annotations from different converters that share a label
// always point at the same category.
type Merger struct {
	dataset    *coco.Dataset
	categories *Registry
	imageOwner map[int64]string
	nextID     int
}

// NewMerger creates an empty merger
func NewMerger() *Merger {
	return &Merger{
		dataset:    coco.NewDataset(),
		categories: NewRegistry(),
		imageOwner: make(map[int64]string),
		nextID:     1,
	}
}

// Add merges one partial result. A partial whose image id is already taken
// is rejected whole and returned as a *FileError wrapping ErrDuplicateImageID.
func (m *Merger) Add(p *PartialResult) error {
	if p == nil {
		return nil
	}

	if owner, taken := m.imageOwner[p.Image.ID]; taken {
		return &FileError{
			Path: p.Source,
			Err:  fmt.Errorf("%w %d, already used by %s", ErrDuplicateImageID, p.Image.ID, owner),
		}
	}
	m.imageOwner[p.Image.ID] = p.Source
	m.dataset.Images = append(m.dataset.Images, p.Image)

	for _, c := range p.Categories {
		m.categories.Resolve(c.Name)
	}

	for _, a := range p.Annotations {
		ann := a.Annotation
		ann.ID = m.nextID
		ann.CategoryID = m.categories.Resolve(a.Category)
		m.nextID++
		m.dataset.Annotations = append(m.dataset.Annotations, ann)
	}

	return nil
}

// Dataset returns the merged dataset. The merger must not be used afterwards.
func (m *Merger) Dataset() *coco.Dataset {
	m.dataset.Categories = m.categories.Categories()
	return m.dataset
}

// Merge combines partial results in the given order. Nil entries are skipped.
// Partials rejected for a duplicate image id are returned alongside the
// dataset and contribute nothing to it.
func Merge(partials []*PartialResult) (*coco.Dataset, []*FileError) {
	m := NewMerger()
	var rejected []*FileError
	for _, p := range partials {
		if err := m.Add(p); err != nil {
			rejected = append(rejected, err.(*FileError))
		}
	}
	return m.Dataset(), rejected
}
