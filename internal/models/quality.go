package models

// CompletenessBucket groups quality scores.
type CompletenessBucket string

const (
	BucketComplete CompletenessBucket = "COMPLETE"
	BucketPartial  CompletenessBucket = "PARTIAL"
	BucketMinimal  CompletenessBucket = "MINIMAL"
	BucketEmpty    CompletenessBucket = "EMPTY"
)

// QualityMetrics describes how much of a required field set a record covers.
type QualityMetrics struct {
	OverallScore       float64            `json:"overall_score"`
	PresentFields      []Field            `json:"present_fields"`
	MissingFields      []Field            `json:"missing_fields"`
	CompletenessBucket CompletenessBucket `json:"completeness_bucket"`
}
