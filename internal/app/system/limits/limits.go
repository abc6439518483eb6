// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxFormSize is the maximum size for ordinary form submissions.
	MaxFormSize = 1 << 20 // 1 MB

	// MaxProofUploadSize is the maximum size of a payment proof image.
	// Matches the upload limit enforced client-side on the payment form.
	MaxProofUploadSize = 5 << 20 // 5 MB

	// MaxLogoUploadSize is the maximum size of an organization logo.
	MaxLogoUploadSize = 2 << 20 // 2 MB

	// MaxProfileImageSize is the maximum size of a profile image upload.
	MaxProfileImageSize = 2 << 20 // 2 MB
)
