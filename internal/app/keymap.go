package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyEsc        = "esc"
	KeyEnter      = "enter"
	KeySpace      = " "
	KeyTab        = "tab"
	KeyShiftTab   = "shift+tab"
	KeyBackspace  = "backspace"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyLeft       = "left"
	KeyRight      = "right"
	KeyJ          = "j"
	KeyK          = "k"
	KeyH          = "h"
	KeyL          = "l"
	KeyFastUp     = "K"
	KeyFastDown   = "J"
	KeyFastLeft   = "H"
	KeyFastRight  = "L"
	KeyNextPage   = "]"
	KeyPrevPage   = "["
	KeyPgDown     = "pgdown"
	KeyPgUp       = "pgup"
	KeyDraw       = "d"
	KeyProceed    = "c"
	KeySelectAll  = "a"
	KeySelectNone = "n"
	KeyBack       = "b"
)
