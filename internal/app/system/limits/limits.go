// internal/app/system/limits/limits.go
package limits

// Request body size limits.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxFormSize bounds url-encoded form submissions, and the non-file part
	// of a complaint upload.
	MaxFormSize = 1 << 20 // 1 MB

	// MultipartMemory is how much of a multipart body is held in memory;
	// larger parts spill to temporary files.
	MultipartMemory = 1 << 20 // 1 MB
)
