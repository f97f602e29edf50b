package subscription

import "fmt"

// InvalidFieldError reports a descriptor that does not fit the event schema.
type InvalidFieldError struct {
	EventType EventType
	Field     string
	Reason    string
}

func (e *InvalidFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("subscription %s: %s", e.EventType, e.Reason)
	}
	return fmt.Sprintf("subscription %s: field %q: %s", e.EventType, e.Field, e.Reason)
}
