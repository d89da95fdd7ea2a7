package models

// Button is a transport-neutral inline keyboard button. Exactly one of
// Data and URL should be set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is rendered as rows of inline buttons.
type Keyboard [][]Button

// Callback prefixes understood on both bot channels. The order id follows
// the colon.
const (
	CallbackTakePrefix = "take:"
	CallbackViewPrefix = "view:"
)

// Row is a convenience constructor for one keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}
