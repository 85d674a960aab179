package model

// Default style values, matching the original backend's MarketArea.save defaults.
const (
	DefaultColor       = "#0078D4"
	DefaultFillOpacity = 0.3
	DefaultBorderWidth = 2.0
)

// StyleSettings is the canonical rendering style of a market area.
type StyleSettings struct {
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
	BorderColor string  `json:"borderColor"`
	BorderWidth float64 `json:"borderWidth"`
	NoFill      bool    `json:"noFill"`
	NoBorder    bool    `json:"noBorder"`
}

// DefaultStyle returns the accent style used when a sheet specifies nothing.
func DefaultStyle() StyleSettings {
	return StyleSettings{
		FillColor:   DefaultColor,
		FillOpacity: DefaultFillOpacity,
		BorderColor: DefaultColor,
		BorderWidth: DefaultBorderWidth,
	}
}

// IsZero reports whether no style field was ever set.
func (s StyleSettings) IsZero() bool {
	return s == StyleSettings{}
}

// Normalize clamps values into range and re-derives the NoFill/NoBorder flags
// so that NoFill == (FillOpacity == 0) and NoBorder == (BorderWidth == 0).
func (s StyleSettings) Normalize() StyleSettings {
	switch {
	case s.FillOpacity < 0:
		s.FillOpacity = 0
	case s.FillOpacity > 1:
		s.FillOpacity = 1
	}
	if s.BorderWidth < 0 {
		s.BorderWidth = 0
	}
	if s.FillColor == "" {
		s.FillColor = DefaultColor
	}
	if s.BorderColor == "" {
		s.BorderColor = DefaultColor
	}
	s.NoFill = s.FillOpacity == 0
	s.NoBorder = s.BorderWidth == 0
	return s
}
