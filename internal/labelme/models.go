package labelme

// File is a single LabelMe annotation document.
type File struct {
	// Path the document was read from. Not part of the JSON payload.
	Path string `json:"-"`

	Version     string  `json:"version"`
	Shapes      []Shape `json:"shapes"`
	ImagePath   string  `json:"imagePath"`
	ImageData   *string `json:"imageData"` // base64 encoded image, nil when not embedded
	ImageHeight int     `json:"imageHeight"`
	ImageWidth  int     `json:"imageWidth"`
}

// Shape is one labeled region
type Shape struct {
	Label     string      `json:"label"`
	Points    [][]float64 `json:"points"`
	GroupID   *int        `json:"group_id"`
	ShapeType string      `json:"shape_type"` // "polygon", "rectangle", "circle", ...
}

// Bounds returns the axis-aligned box around all points as min/max corners.
// Callers must have validated that the shape has at least one point.
func (s *Shape) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = s.Points[0][0], s.Points[0][1]
	maxX, maxY = minX, minY
	for _, p := range s.Points[1:] {
		minX = min(minX, p[0])
		minY = min(minY, p[1])
		maxX = max(maxX, p[0])
		maxY = max(maxY, p[1])
	}
	return minX, minY, maxX, maxY
}

// Flatten returns the points as x1, y1, x2, y2, ...
func (s *Shape) Flatten() []float64 {
	flat := make([]float64, 0, 2*len(s.Points))
	for _, p := range s.Points {
		flat = append(flat, p[0], p[1])
	}
	return flat
}
