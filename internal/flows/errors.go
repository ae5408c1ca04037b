package flows

import "fmt"

// joinErr keeps sentinel matchable through errors.Is while carrying the
// collaborator's message.
func joinErr(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
