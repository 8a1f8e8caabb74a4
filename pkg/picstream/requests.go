package picstream

// UploadRequest contains parameters for uploading a new image.
type UploadRequest struct {
	// Data is the raw image content
	Data []byte

	// FileName is the original filename of the uploaded content
	FileName string

	// MimeType is the declared content type
	MimeType string

	// Name is an optional display name; defaults to FileName when empty
	Name string
}
