package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB value. Its canonical text form is "#RRGGBB".
type Color struct {
	R, G, B uint8
}

// RGB builds a Color from its channels.
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b} }

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseColor accepts "#rrggbb" in any letter case.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustColor is ParseColor for package-level tables.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Standard cube sticker colours.
var (
	Red    = RGB(0xFF, 0x00, 0x00)
	Green  = RGB(0x00, 0xFF, 0x00)
	Blue   = RGB(0x00, 0x00, 0xFF)
	Yellow = RGB(0xFF, 0xFF, 0x00)
	Orange = RGB(0xFF, 0xA5, 0x00)
	White  = RGB(0xFF, 0xFF, 0xFF)
)

// CubePalette is the fixed six-colour palette used for placeholder fill.
func CubePalette() []Color {
	return []Color{Red, Green, Blue, Yellow, Orange, White}
}

// FormatColors renders colours in canonical form.
func FormatColors(cs []Color) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
