package store

import (
	"errors"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// Validation messages returned to callers verbatim.
const (
	msgNameRequired       = "Name is required"
	msgDuplicateName      = "market area with this name already exists in this project"
	msgRadiusRequired     = "Radius points are required for radius type market areas"
	msgDriveTimeRequired  = "Drive time points are required for drive time type market areas"
	msgLocationsRequired  = "Locations are required for non-radius type market areas"
	msgTypeInvalidPayload = "market area type does not match its geography"
)

// ValidationError rejects a draft before anything is written.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return e.Field + ": " + e.Detail
}

// Detail returns the user-facing message carried by err, if any: the
// detail of a *ValidationError or *APIError anywhere in its chain.
func Detail(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Detail, true
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail, true
	}
	return "", false
}

func duplicateName() error {
	return &ValidationError{Field: "name", Detail: msgDuplicateName}
}

// prepare validates d and returns the copy that gets stored, with the
// default style applied when none was set.
func prepare(d *model.MarketAreaDraft) (*model.MarketAreaDraft, error) {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return nil, &ValidationError{Field: "name", Detail: msgNameRequired}
	}
	if err := d.Validate(); err != nil {
		return nil, &ValidationError{Field: "ma_type", Detail: msgTypeInvalidPayload}
	}

	switch d.Type {
	case model.TypeRadius:
		if len(d.RadiusPoints()) == 0 {
			return nil, &ValidationError{Field: "radius_points", Detail: msgRadiusRequired}
		}
	case model.TypeDriveTime:
		if len(d.DriveTimePoints()) == 0 {
			return nil, &ValidationError{Field: "drive_time_points", Detail: msgDriveTimeRequired}
		}
	default:
		if len(d.Locations()) == 0 {
			return nil, &ValidationError{Field: "locations", Detail: msgLocationsRequired}
		}
	}

	out := d.Clone()
	out.Name = strings.TrimSpace(out.Name)
	if out.Style.IsZero() {
		out.Style = model.DefaultStyle()
	}
	return out, nil
}
