package notify

// PermissionStatus is the shared three-plus-one valued permission
// vocabulary every platform branch is normalized onto.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	// PermissionPrompt means the user has not decided yet and a request
	// prompt may still be shown. The browser vocabulary calls this
	// "default"; ParsePermissionStatus maps it over.
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionUnknown PermissionStatus = "unknown"
)

// ParsePermissionStatus normalizes a raw platform permission string.
// The browser's "default" maps to prompt; anything unrecognized maps to
// unknown rather than failing.
func ParsePermissionStatus(s string) PermissionStatus {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	case "prompt", "default":
		return PermissionPrompt
	default:
		return PermissionUnknown
	}
}
