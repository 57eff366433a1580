package types

// Event is the rendered form of a controller event: a dotted type such as
// "bridge.minted" and its attributes. Amounts are base-10 base units and
// addresses are checksummed hex.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the attribute stored under key, or "" when the event does not
// carry it.
func (e *Event) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attributes[key]
}
