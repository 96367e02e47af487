package docs

// UploadState tracks one file through the upload/ingest pipeline
type UploadState string

const (
	UploadQueued     UploadState = "queued"
	UploadUploading  UploadState = "uploading"
	UploadProcessing UploadState = "processing"
	UploadDone       UploadState = "done"
	UploadFailed     UploadState = "failed"
)

// Document is one uploaded file owned by the signed-in user. IsDeleting is a
// transient flag set while a delete request is in flight.
type Document struct {
	Key        string
	FileName   string
	IsDeleting bool
}

// FileResult records the outcome of one file's upload chain. Step names the
// pipeline stage that failed: validate, presign, transfer, or process.
type FileResult struct {
	FileName string
	Key      string
	Step     string
	Err      error
}

// BatchResult summarizes an upload batch
type BatchResult struct {
	Successful []FileResult
	Failed     []FileResult
	Total      int
}

// Progress reports batch completion as files finish, in any order
type Progress struct {
	Completed int
	Total     int
	Current   string
	State     UploadState
	Err       error
}
