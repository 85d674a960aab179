package featureservice

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/marketarea-cli/internal/model"
)

// QuerySpec is one attribute query against a layer.
type QuerySpec struct {
	Where                string
	OutFields            []string
	ReturnGeometry       bool
	ReturnDistinctValues bool
	MaxRecordCount       int
}

// values encodes the query as ArcGIS REST parameters.
func (q QuerySpec) values() url.Values {
	v := url.Values{}
	where := q.Where
	if where == "" {
		where = "1=1"
	}
	v.Set("where", where)

	fields := "*"
	if len(q.OutFields) > 0 {
		fields = strings.Join(q.OutFields, ",")
	}
	v.Set("outFields", fields)
	v.Set("returnGeometry", strconv.FormatBool(q.ReturnGeometry))
	if q.ReturnDistinctValues {
		v.Set("returnDistinctValues", "true")
	}
	if q.MaxRecordCount > 0 {
		v.Set("resultRecordCount", strconv.Itoa(q.MaxRecordCount))
	}
	v.Set("outSR", strconv.Itoa(model.WGS84))
	v.Set("f", "json")
	return v
}

// Feature is one record returned by a layer query.
type Feature struct {
	Attributes map[string]any  `json:"attributes"`
	Geometry   *model.Geometry `json:"geometry,omitempty"`
}

// Attr looks up an attribute by name, ignoring case.
func (f Feature) Attr(name string) (any, bool) {
	if v, ok := f.Attributes[name]; ok {
		return v, true
	}
	for k, v := range f.Attributes {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// String returns an attribute as text. Whole numbers print without a decimal
// point; missing and null attributes are empty.
func (f Feature) String(name string) string {
	v, ok := f.Attr(name)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ServiceError is an error envelope returned by the feature service.
type ServiceError struct {
	Layer   int      `json:"-"`
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("featureservice: layer %d: %s (code %d)", e.Layer, e.Message, e.Code)
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

// IsDistinctUnsupported reports whether err says the layer cannot combine
// distinct values with the other query options.
func IsDistinctUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		if strings.Contains(strings.ToUpper(se.Message), "DISTINCT") {
			return true
		}
		for _, d := range se.Details {
			if strings.Contains(strings.ToUpper(d), "DISTINCT") {
				return true
			}
		}
	}
	return strings.Contains(strings.ToUpper(err.Error()), "DISTINCT")
}
