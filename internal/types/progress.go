package types

// ProgressFunc receives human-readable progress messages. It is purely
// informational and must not panic.
type ProgressFunc func(message string)

// Notify calls fn if it is set.
func (fn ProgressFunc) Notify(message string) {
	if fn != nil {
		fn(message)
	}
}
