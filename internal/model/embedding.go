package model

// SummaryEmbedding is the vector computed from one media item's summary text
type SummaryEmbedding struct {
	VideoID     int64     `json:"video_id" db:"video_id"`
	SummaryText string    `json:"summary_text" db:"summary_text"`
	Model       string    `json:"model" db:"model"`
	Dimensions  int       `json:"dimensions" db:"dimensions"`
	Embedding   []float32 `json:"embedding" db:"embedding"`
}

// SimilarItem is one nearest-neighbour result
type SimilarItem struct {
	ExternalID string  `json:"video_id"`
	Day        int     `json:"day"`
	SourceURL  *string `json:"source_url,omitempty"`
	Title      *string `json:"title,omitempty"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// LabeledVector pairs an embedding with the media item it belongs to
type LabeledVector struct {
	ExternalID string
	Vector     []float32
}

// Point is a 2D layout coordinate in [0,1]x[0,1]
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SummarySource holds the stored facts a summary can be rebuilt from
type SummarySource struct {
	VideoID            int64
	ExternalID         string
	Day                int
	Sentiment          string
	RatingOverall      *float64
	RatingRichness     *float64
	RatingComplexity   *float64
	FlavorProfileNotes *string
	Transcript         *string
	Ingredients        []string
}
