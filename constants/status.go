package constants

// DocumentStatus is the lifecycle state of a document row.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusReceived    DocumentStatus = "received"
	StatusProcessing  DocumentStatus = "processing"
	StatusProcessed   DocumentStatus = "processed"
	StatusNeedsReview DocumentStatus = "needs_review"
)

// ClassificationMethod records how the form type was determined.
type ClassificationMethod string

const (
	MethodText   ClassificationMethod = "text"
	MethodVision ClassificationMethod = "vision"
)

// DocumentStatusStrings lists every status value.
func DocumentStatusStrings() []string {
	return []string{
		string(StatusReceived),
		string(StatusProcessing),
		string(StatusProcessed),
		string(StatusNeedsReview),
	}
}
