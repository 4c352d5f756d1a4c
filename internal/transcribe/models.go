package transcribe

// Model sizes accepted by the speech backend, smallest to largest.
var modelSizes = []string{"base", "small", "medium", "large-v3", "large-v3-turbo"}

// DefaultModelSize is used when a job does not pick one.
const DefaultModelSize = "base"

// KnownModelSize reports whether size is an accepted model size.
func KnownModelSize(size string) bool {
	for _, s := range modelSizes {
		if s == size {
			return true
		}
	}
	return false
}

// ModelSizes returns the accepted model sizes, smallest first.
func ModelSizes() []string {
	return append([]string(nil), modelSizes...)
}
