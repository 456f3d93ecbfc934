//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetDBPoolConns(t *testing.T) {
	SetDBPoolConns(8, 5, 3)

	for _, tc := range []struct {
		state string
		want  float64
	}{
		{"total", 8},
		{"idle", 5},
		{"acquired", 3},
	} {
		if got := testutil.ToFloat64(dbPoolConns.WithLabelValues(tc.state)); got != tc.want {
			t.Errorf("state %q: want %v, got %v", tc.state, tc.want, got)
		}
	}
}
