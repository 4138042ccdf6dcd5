// Package models defines the wire types exchanged with the Portal.
package models

// UserProfile is the response to GET /me and identifies the operator
// and their submission affiliations.
type UserProfile struct {
	Title             string      `json:"title"`
	ContactEmail      string      `json:"contact_email"`
	Groups            []string    `json:"groups,omitempty"`
	Consortia         []NamedItem `json:"consortia,omitempty"`
	SubmissionCenters []NamedItem `json:"submission_centers,omitempty"`
}

// NamedItem is a minimal Portal object reference.
type NamedItem struct {
	UUID         string `json:"uuid,omitempty"`
	DisplayTitle string `json:"display_title,omitempty"`
}

// HealthInfo is the response to GET /health. The encryption key id is
// the per-environment KMS fallback used when an upload credential does
// not carry its own.
type HealthInfo struct {
	MetadataBundlesBucket string `json:"metadata_bundles_bucket,omitempty"`
	S3EncryptKeyID        string `json:"s3_encrypt_key_id,omitempty"`
}

// UploadCredential is the short-lived scoped credential bundle the
// Portal issues for exactly one object upload. UploadURL is a full
// s3://bucket/key destination.
type UploadCredential struct {
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	SessionToken    string `json:"SessionToken"`
	UploadURL       string `json:"upload_url"`
	S3EncryptKeyID  string `json:"s3_encrypt_key_id,omitempty"`
}

// ProcessingStatus describes server-side ingestion progress.
// State is "done" when processing finished; Outcome then classifies
// the result ("success", "error", ...). Progress is free-form display
// text.
type ProcessingStatus struct {
	State    string `json:"state,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Progress string `json:"progress,omitempty"`
}

// UploadInfo names one file the Portal expects to be uploaded for a
// submission: the target object UUID and the filename, plus whatever
// identifying attributes the Portal includes.
type UploadInfo struct {
	UUID          string `json:"uuid"`
	Filename      string `json:"filename"`
	Type          string `json:"type,omitempty"`
	Accession     string `json:"accession,omitempty"`
	AccessionName string `json:"accession_name,omitempty"`
}

// IngestionStatus is the response to
// GET /ingestion-submissions/<uuid>?format=json&datastore=database.
type IngestionStatus struct {
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	AdditionalData   *AdditionalData  `json:"additional_data,omitempty"`
	Parameters       map[string]any   `json:"parameters,omitempty"`
	UploadInfo       []UploadInfo     `json:"upload_info,omitempty"`
}

// AdditionalData carries the upload targets once ingestion succeeds.
type AdditionalData struct {
	UploadInfo []UploadInfo `json:"upload_info,omitempty"`
}

// UploadFiles returns the upload targets wherever the Portal put them;
// additional_data.upload_info wins over the top-level field.
func (s *IngestionStatus) UploadFiles() []UploadInfo {
	if s.AdditionalData != nil && len(s.AdditionalData.UploadInfo) > 0 {
		return s.AdditionalData.UploadInfo
	}
	return s.UploadInfo
}

// SubmissionResponse is the response to POST submit_for_ingestion.
type SubmissionResponse struct {
	SubmissionID string `json:"submission_id"`
}
