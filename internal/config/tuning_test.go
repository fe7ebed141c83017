package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEmptyConfigFallsBackToDocumentedDefaults(t *testing.T) {
	c := EmptyTuningConfig()
	require.Equal(t, "annular", c.GetBlobKernel())
	require.InDelta(t, 3.0, c.GetBlobThreshold(), 1e-12)
	require.Equal(t, 4, c.GetWorkerPoolSize())

	maxDim, tolerance, _, _, _, _, nVertices, _, _ := c.GetIndexTolerances()
	require.InDelta(t, 50.0, maxDim, 1e-12)
	require.InDelta(t, 0.05, tolerance, 1e-12)
	require.Equal(t, 1000, nVertices)

	sg, friedel := c.GetMergeDefaults()
	require.Equal(t, "P 1", sg)
	require.False(t, friedel)
}

func TestDefaultTuningConfigMatchesAccessorDefaults(t *testing.T) {
	def := DefaultTuningConfig()
	empty := EmptyTuningConfig()

	require.Equal(t, empty.GetBlobKernel(), def.GetBlobKernel())
	require.InDelta(t, empty.GetBlobThreshold(), def.GetBlobThreshold(), 1e-12)
	require.Equal(t, empty.GetWorkerPoolSize(), def.GetWorkerPoolSize())

	wantMaxDim, wantTol, wantNiggli, wantGruber, wantVol, wantEquiv, wantNV, wantSubdiv, wantCutoff := empty.GetIndexTolerances()
	gotMaxDim, gotTol, gotNiggli, gotGruber, gotVol, gotEquiv, gotNV, gotSubdiv, gotCutoff := def.GetIndexTolerances()
	require.InDelta(t, wantMaxDim, gotMaxDim, 1e-12)
	require.InDelta(t, wantTol, gotTol, 1e-12)
	require.InDelta(t, wantNiggli, gotNiggli, 1e-12)
	require.InDelta(t, wantGruber, gotGruber, 1e-12)
	require.InDelta(t, wantVol, gotVol, 1e-12)
	require.InDelta(t, wantEquiv, gotEquiv, 1e-12)
	require.Equal(t, wantNV, gotNV)
	require.Equal(t, wantSubdiv, gotSubdiv)
	require.Equal(t, wantCutoff, gotCutoff)
}

// TestLoadTuningConfigRoundTrip writes DefaultTuningConfig to disk and
// reloads it, comparing with go-cmp since reflect.DeepEqual on the
// pointer fields would compare addresses rather than values.
func TestLoadTuningConfigRoundTrip(t *testing.T) {
	def := DefaultTuningConfig()
	data, err := json.Marshal(def)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := LoadTuningConfig(path)
	require.NoError(t, err)

	if diff := cmp.Diff(def, got); diff != "" {
		t.Fatalf("round-tripped config differs (-want +got):\n%s", diff)
	}
}

func TestLoadTuningConfigRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err := LoadTuningConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsInvertedIntegrationScales(t *testing.T) {
	c := EmptyTuningConfig()
	c.IntegratePeakEnd = ptrFloat64(2.0)
	c.IntegrateBkgBegin = ptrFloat64(1.0)
	require.Error(t, c.Validate())
}
