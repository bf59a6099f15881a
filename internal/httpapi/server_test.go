package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/usestring/shapescan/internal/cache"
	"github.com/usestring/shapescan/internal/metrics"
	"github.com/usestring/shapescan/internal/pipeline"
	"github.com/usestring/shapescan/internal/store"
	"github.com/usestring/shapescan/pkg/shape"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func accumulator(t *testing.T) *pipeline.Accumulator {
	t.Helper()
	acc := pipeline.NewAccumulator()
	for i, doc := range []bson.D{
		{{Key: "a", Value: int32(1)}},
		{{Key: "a", Value: "x"}},
		{{Key: "a", Value: int32(2)}},
	} {
		raw, err := bson.Marshal(doc)
		require.NoError(t, err)
		s, err := shape.Build(raw)
		require.NoError(t, err)
		acc.Add(uint32(i), s)
	}
	return acc
}

func TestServer_Health(t *testing.T) {
	rec := get(t, New(Options{}), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Shapes(t *testing.T) {
	srv := New(Options{Snapshot: accumulator(t).Snapshot})

	rec := get(t, srv, "/shapes?samples=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"shapes": [
			{"schema": {"a": ["Int32"]}, "records": 2, "samples": [0]},
			{"schema": {"a": ["String"]}, "records": 1, "samples": [1]}
		],
		"actions": {"noop": 1, "push": 2, "keep": 0, "take": 0}
	}`, rec.Body.String())

	rec = get(t, srv, "/shapes?samples=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_DisabledRoutes(t *testing.T) {
	srv := New(Options{})
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/shapes").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/metrics").Code)
}

func TestServer_Metrics(t *testing.T) {
	m := metrics.New()
	m.Record()
	rec := get(t, New(Options{Metrics: m}), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shapescan_records_total 1")
}

func TestServer_Runs(t *testing.T) {
	st, err := store.Open(store.Config{})
	require.NoError(t, err)
	defer st.Close()
	rc, err := cache.NewRunCache(4)
	require.NoError(t, err)

	srv := New(Options{Store: st, Cache: rc})

	rec := get(t, srv, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	run, err := store.NewRun("people.json")
	require.NoError(t, err)
	run.Shapes = accumulator(t).Set()
	require.NoError(t, st.Put(run))

	rec = get(t, srv, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, run.ID, list[0].ID)
	assert.Equal(t, 2, list[0].Shapes)

	rec = get(t, srv, "/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "people.json", got["source"])
	assert.Len(t, got["shapes"], 2)
	assert.Equal(t, 1, rc.Len())

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/runs/not-a-uuid").Code)
}

func TestServer_ListenAndServe(t *testing.T) {
	s := New(Options{})
	ln, err := s.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)

	_, err = s.Listen("not an address")
	assert.Error(t, err)
}
