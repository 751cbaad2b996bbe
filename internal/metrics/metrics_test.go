package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserverCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := New("test", reg)
	require.NoError(t, err)

	o.CacheLookup(true, nil)
	o.CacheLookup(false, nil)
	o.CacheLookup(false, errors.New("down"))
	o.CacheLookup(true, nil)
	o.DeductionsDropped(3)
	o.Analysis("computed")
	o.ObserveStage("points", 10*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(o.cacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(o.cacheLookups.WithLabelValues("error")))
	require.Equal(t, 3.0, testutil.ToFloat64(o.dropped))
	require.Equal(t, 1.0, testutil.ToFloat64(o.analyses.WithLabelValues("computed")))
}

func TestObserverReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New("test", reg)
	require.NoError(t, err)
	b, err := New("test", reg)
	require.NoError(t, err)

	b.DeductionsDropped(2)
	require.Equal(t, 2.0, testutil.ToFloat64(a.dropped))
}

func TestNilObserver(t *testing.T) {
	var o *Observer
	o.CacheLookup(true, nil)
	o.DeductionsDropped(1)
	o.Analysis("failed")
	o.ObserveStage("x", time.Second)
}
