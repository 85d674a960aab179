package featureservice

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketarea-cli/internal/model"
	"github.com/sells-group/marketarea-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func newTestClient(url string) Client {
	return NewClient(url, WithRateLimit(1000), WithRetry(fastRetry()))
}

func TestQuery_Success(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MapServer/82/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"spatialReference": {"wkid": 4326},
			"features": [{
				"attributes": {"NAME": "Orange County", "STATE": "06", "OBJECTID": 12},
				"geometry": {"rings": [[[-118,33],[-117,33],[-117,34],[-118,33]]]}
			}]
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/MapServer/")
	features, err := c.Query(context.Background(), 82, QuerySpec{
		Where:                "NAME LIKE '%Orange%'",
		ReturnGeometry:       true,
		ReturnDistinctValues: true,
		MaxRecordCount:       50,
	})
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, "Orange County", f.String("name"))
	assert.Equal(t, "12", f.String("OBJECTID"))
	assert.Equal(t, "", f.String("missing"))
	require.NotNil(t, f.Geometry)
	assert.Equal(t, model.WGS84, f.Geometry.WKID())
	assert.Len(t, f.Geometry.Rings[0], 4)

	assert.Equal(t, "NAME LIKE '%Orange%'", form["where"])
	assert.Equal(t, "*", form["outFields"])
	assert.Equal(t, "true", form["returnGeometry"])
	assert.Equal(t, "true", form["returnDistinctValues"])
	assert.Equal(t, "50", form["resultRecordCount"])
	assert.Equal(t, "4326", form["outSR"])
	assert.Equal(t, "json", form["f"])
}

func TestQuery_ErrorEnvelope(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Unable to complete operation.","details":["DISTINCT is not supported with returnGeometry"]}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Query(context.Background(), 28, QuerySpec{ReturnDistinctValues: true})
	require.Error(t, err)

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 28, se.Layer)
	assert.Equal(t, 400, se.Code)
	assert.True(t, IsDistinctUnsupported(err))
	assert.Equal(t, int32(1), calls.Load(), "service errors are not retried")
}

func TestQuery_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"features":[{"attributes":{"ZCTA5":"92618"}}]}`)
	}))
	defer srv.Close()

	features, err := newTestClient(srv.URL).Query(context.Background(), 2, QuerySpec{Where: "ZCTA5 = '92618'"})
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Nil(t, features[0].Geometry)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQuery_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such layer", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Query(context.Background(), 999, QuerySpec{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 404")
	assert.False(t, resilience.IsTransient(err))
}

func TestQuery_CircuitOpensPerLayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/8/query" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"features":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
		WithCircuit(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}),
	)
	for i := 0; i < 2; i++ {
		_, err := c.Query(context.Background(), 8, QuerySpec{})
		require.Error(t, err)
	}
	_, err := c.Query(context.Background(), 8, QuerySpec{})
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))

	_, err = c.Query(context.Background(), 10, QuerySpec{})
	assert.NoError(t, err, "other layers keep their own breaker")
}

func TestDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "json", r.PostForm.Get("f"))
		_, _ = io.WriteString(w, `{"layers":[{"id":82,"name":"Counties"},{"id":95,"name":"Metropolitan Divisions"}]}`)
	}))
	defer srv.Close()

	layers, err := newTestClient(srv.URL).Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LayerInfo{{ID: 82, Name: "Counties"}, {ID: 95, Name: "Metropolitan Divisions"}}, layers)
}

func TestQuerySpec_Values(t *testing.T) {
	v := QuerySpec{OutFields: []string{"NAME", "GEOID"}}.values()
	assert.Equal(t, "1=1", v.Get("where"))
	assert.Equal(t, "NAME,GEOID", v.Get("outFields"))
	assert.Equal(t, "false", v.Get("returnGeometry"))
	assert.False(t, v.Has("returnDistinctValues"))
	assert.False(t, v.Has("resultRecordCount"))
}

func TestIsDistinctUnsupported(t *testing.T) {
	assert.False(t, IsDistinctUnsupported(nil))
	assert.True(t, IsDistinctUnsupported(errors.New("returnDistinctValues: SELECT DISTINCT failed")))
	assert.True(t, IsDistinctUnsupported(&ServiceError{Message: "Distinct not allowed"}))
	assert.False(t, IsDistinctUnsupported(&ServiceError{Message: "Invalid query"}))
}

func TestDefaultLayers(t *testing.T) {
	layers := DefaultLayers()
	md, ok := layers.For(model.TypeMD)
	require.True(t, ok)
	assert.Equal(t, []int{95}, md.IDs)
	assert.Equal(t, model.TypeMD, md.Type)
	assert.Equal(t, "BASENAME", md.AltNameField)

	_, ok = layers.For(model.TypeRadius)
	assert.False(t, ok)

	for _, l := range layers.Sorted() {
		assert.True(t, l.Type.UsesLocations(), l.Type)
	}
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
layers:
  tract:
    ids: [6, 8]
    id_fields: [GEOID, TRACT_FIPS, FIPS]
  county:
    title: Counties (hosted)
`), 0o644))

	layers, err := LoadLayers(path)
	require.NoError(t, err)

	tract, _ := layers.For(model.TypeTract)
	assert.Equal(t, []int{6, 8}, tract.IDs)
	assert.Equal(t, []string{"GEOID", "TRACT_FIPS", "FIPS"}, tract.IDFields)
	assert.Equal(t, "NAME", tract.NameField)

	county, _ := layers.For(model.TypeCounty)
	assert.Equal(t, "Counties (hosted)", county.Title)
	assert.Equal(t, []int{82}, county.IDs)
}

func TestLoadLayers_Errors(t *testing.T) {
	layers, err := LoadLayers("")
	require.NoError(t, err)
	assert.Len(t, layers, len(DefaultLayers()))

	_, err = LoadLayers(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layers:\n  radius:\n    ids: [1]\n"), 0o644))
	_, err = LoadLayers(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a location type")
}
