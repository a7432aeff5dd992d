package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme maps monitor roles onto a palette
type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Phase bar
	Slot     rune // · pulse slot
	Current  rune // ● slot the phase is in
	Downbeat rune // ○ first slot of the beat

	Device rune // ▶ attached output
}

// New builds a theme on palette, or on Default if palette is nil
func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Slot:     '·',
			Current:  '●',
			Downbeat: '○',
			Device:   '▶',
		},
	}
}

// Role is a position on the palette ramp
type Role float64

const (
	RoleMuted   Role = 0.2
	RoleFG      Role = 0.4
	RoleAccent  Role = 0.5
	RoleActive  Role = 0.7
	RoleWarning Role = 0.8
	RoleSuccess Role = 1.0
)

// Role returns the color for r
func (t *Theme) Role(r Role) lipgloss.Color {
	return t.Color(float64(r))
}

func (t *Theme) FG() lipgloss.Color      { return t.Role(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Role(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Role(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Role(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Role(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Role(RoleSuccess) }

// Color returns the palette color at norm in [0, 1] as a hex lipgloss color
func (t *Theme) Color(norm float64) lipgloss.Color {
	c := t.Palette.Lookup(norm)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
