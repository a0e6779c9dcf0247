package midi

// PadEvent is sent when a pad/button is pressed on a grid controller.
// Row 8 is the top control row and column 8 the side scene buttons.
type PadEvent struct {
	Row, Col int
	Velocity uint8
}

// LEDUpdate sets one pad's colour.
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8 // ChannelStatic, ChannelFlash or ChannelPulse
}

// Controller is a grid surface with lit pads
type Controller interface {
	ID() string

	// Input events from the controller
	PadEvents() <-chan PadEvent

	// Output to the controller
	SetLEDBatch(updates []LEDUpdate) error

	// Lifecycle
	Close() error
}

// Channel modes for LEDUpdate
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)
