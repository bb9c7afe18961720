package state

import "fmt"

// This file is hand-written in the shape `dmarkham/enumer` would generate
// (see internal/features/boardid_enumer.go in the teacher for the pattern):
// a values table plus String/MarshalText/UnmarshalText/MarshalJSON. We don't
// invoke the generator itself, so it's kept by hand.

var pieceTypeValues = [numPieceTypesPlusOne]PieceType{NoPiece, Ant, Beetle, Grasshopper, Queen, Spider}

// PieceTypeValues returns all valid PieceType values, including NoPiece.
func PieceTypeValues() []PieceType {
	return pieceTypeValues[:]
}

// MarshalText implements encoding.TextMarshaler.
func (p PieceType) MarshalText() ([]byte, error) {
	if int(p) >= len(pieceNames) {
		return nil, fmt.Errorf("state: %d is not a valid PieceType", p)
	}
	return []byte(pieceNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PieceType) UnmarshalText(text []byte) error {
	s := string(text)
	for ii, name := range pieceNames {
		if name == s {
			*p = PieceType(ii)
			return nil
		}
	}
	return fmt.Errorf("state: %q is not a valid PieceType", s)
}

// MarshalJSON implements json.Marshaler.
func (p PieceType) MarshalJSON() ([]byte, error) {
	text, err := p.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(text) + `"`), nil
}

var colorValues = [3]Color{White, Black, NoColor}

// ColorValues returns all Color values, including NoColor.
func ColorValues() []Color {
	return colorValues[:]
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	if int(c) >= len(colorNames) {
		return nil, fmt.Errorf("state: %d is not a valid Color", c)
	}
	return []byte(colorNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	s := string(text)
	for ii, name := range colorNames {
		if name == s {
			*c = Color(ii)
			return nil
		}
	}
	return fmt.Errorf("state: %q is not a valid Color", s)
}

// MarshalJSON implements json.Marshaler.
func (c Color) MarshalJSON() ([]byte, error) {
	text, err := c.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(`"` + string(text) + `"`), nil
}
