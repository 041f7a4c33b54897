package verify

// FieldResult is the verdict for one claimed field.
type FieldResult struct {
	Provided   string `json:"provided"`
	Verified   bool   `json:"verified"`
	Match      string `json:"match,omitempty"`
	FoundIn    string `json:"found_in,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Fields groups the per-field verdicts under their form names.
type Fields struct {
	LastName  FieldResult `json:"last_name"`
	Birthday  FieldResult `json:"birthday"`
	StudentID FieldResult `json:"student_id"`
}

// Outcome is produced by every successful run, verified or not.
type Outcome struct {
	Verified      bool     `json:"verified"`
	Verification  Fields   `json:"verification"`
	ExtractedText string   `json:"extracted_text"`
	Profiles      []string `json:"profiles"`
	Warnings      []string `json:"warnings,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}
