package internal

// FormMetadataResponse is the listing projection of a provisioned form
// provider: identity only, no columns or records.
type FormMetadataResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
