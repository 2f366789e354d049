package robotapi

// RGB is a normalized (0..1) color channel triple.
type RGB struct {
	R, G, B float64
}

var ColorOff = RGB{}

// EarLEDs holds the ten intensity-only LEDs around one ear.
type EarLEDs [10]float64

// EyeLEDs holds the eight RGB LEDs around one eye.
type EyeLEDs [8]RGB

// SkullLEDs holds the twelve intensity-only LEDs on the head skull.
type SkullLEDs [12]float64
