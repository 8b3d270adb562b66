package coco

// Supercategory is assigned to every category the converter creates.
const Supercategory = "none"

// Dataset is a COCO object detection document
type Dataset struct {
	Info        Info         `json:"info"`
	Licenses    []License    `json:"licenses"`
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

// Info is always written as an empty object.
type Info struct{}

// License is always written as an empty list, the type exists for decoding.
type License struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Image describes one extracted image
type Image struct {
	ID       int64  `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

// Annotation is one labeled region of an image
type Annotation struct {
	ID           int         `json:"id"`
	ImageID      int64       `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"` // x, y, width, height
	Segmentation [][]float64 `json:"segmentation"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
}

// Category is a named object class
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// NewDataset returns an empty dataset whose lists encode as [] rather than null.
func NewDataset() *Dataset {
	return &Dataset{
		Licenses:    []License{},
		Images:      []Image{},
		Annotations: []Annotation{},
		Categories:  []Category{},
	}
}

// ImageIndex maps image ids to their records.
func (d *Dataset) ImageIndex() map[int64]Image {
	index := make(map[int64]Image, len(d.Images))
	for _, img := range d.Images {
		index[img.ID] = img
	}
	return index
}

// AnnotationsByImage groups annotations under their image id, keeping order.
func (d *Dataset) AnnotationsByImage() map[int64][]Annotation {
	grouped := make(map[int64][]Annotation, len(d.Images))
	for _, ann := range d.Annotations {
		grouped[ann.ImageID] = append(grouped[ann.ImageID], ann)
	}
	return grouped
}
