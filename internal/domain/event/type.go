package event

// Type identifies the type of notification event
type Type string

const (
	TypeProcessCreated      Type = "process.created"
	TypeProcessStateChanged Type = "process.state_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeProcessCreated, TypeProcessStateChanged:
		return true
	default:
		return false
	}
}
