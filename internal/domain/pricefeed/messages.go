package pricefeed

// Message keys returned with every feed result.
const (
	KeySuccess       = "feed.success"
	KeyPartial       = "feed.partial"
	KeyRejected      = "feed.rejected"
	KeyUnknownOutlet = "feed.unknown_outlet"
)

// MessageLookup resolves a message key to human-readable text.
type MessageLookup interface {
	Message(key string) string
}

// StaticMessages is a fixed key-to-text table. Unknown keys resolve to the key itself.
type StaticMessages map[string]string

func (m StaticMessages) Message(key string) string {
	if text, ok := m[key]; ok {
		return text
	}
	return key
}

// Messages is the default English table.
var Messages = StaticMessages{
	KeySuccess:       "Prices updated",
	KeyPartial:       "Some matched products could not be updated",
	KeyRejected:      "Feed rejected: token and versions are required",
	KeyUnknownOutlet: "Feed rejected: unknown or inactive outlet",
}
