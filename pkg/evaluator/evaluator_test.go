package evaluator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevedore-io/stevedore/pkg/types"
)

func evalExpr(t *testing.T, src string, props map[string]interface{}) interface{} {
	t.Helper()
	e, err := Compile(src)
	require.NoError(t, err)
	v, err := e.Eval(props)
	require.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want interface{}
	}{
		{"1 + 2 * 3", 7.0},
		{"(1 + 2) * 3", 9.0},
		{"10 - 4 - 3", 3.0},
		{"20 / 4 / 5", 1.0},
		{"7 % 3", 1.0},
		{"7.5 % 2", 1.5},
		{"5 % 2.5", 0.0},
		{"-7 % 3", -1.0},
		{"-3 + 5", 2.0},
		{"min(3, 1, 2)", 1.0},
		{"max(3, 1, 2)", 3.0},
		{"max(min(5, 10), 2)", 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.src, nil))
		})
	}
}

func TestComparisonAndBoolean(t *testing.T) {
	tests := []struct {
		src  string
		want interface{}
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"1 == 1 and 2 == 2", true},
		{"1 == 2 or 2 == 2", true},
		{"not (1 == 2)", true},
		{"!(1 > 0)", false},
		{"true && false", false},
		{"true || false", true},
		{"'ceph' == 'ceph'", true},
		{"'a' < 'b'", true},
		{"1 == 1 ? 10 : 20", 10.0},
		{"1 == 2 ? 10 : 20", 20.0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.src, nil))
		})
	}
}

func TestProperties(t *testing.T) {
	host := &types.HostState{
		Host:                     "lvm-1",
		Pool:                     "pool-a",
		TotalCapacity:            types.NewCapacity(100),
		FreeCapacity:             types.NewCapacity(40),
		MaxOverSubscriptionRatio: 2.0,
		VolumeCount:              7,
		StorageProtocol:          "iSCSI",
		Capabilities:             map[string]string{"compression": "true", "qos_tiers": "3"},
	}
	spec := &types.RequestSpec{SizeGB: 15, VolumeType: "gold"}
	props := Properties(host, spec)

	tests := []struct {
		src  string
		want interface{}
	}{
		{"volume.size < 10", false},
		{"backend.free_capacity > volume.size * 2", true},
		{"capability.compression", true},
		{"capability.qos_tiers >= 3", true},
		{"backend.storage_protocol == 'iSCSI'", true},
		{"backend.volume_count < 10 ? 100 : 25", 100.0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.src, props))
		})
	}
}

func TestSentinelCapacitiesAreOmitted(t *testing.T) {
	host := &types.HostState{
		Host:          "obj-1",
		TotalCapacity: types.InfiniteCapacity(),
		FreeCapacity:  types.UnknownCapacity(),
	}
	props := Properties(host, nil)

	_, haveFree := props["backend.free_capacity"]
	_, haveTotal := props["backend.total_capacity"]
	assert.False(t, haveFree)
	assert.False(t, haveTotal)

	e, err := Compile("backend.free_capacity > 10")
	require.NoError(t, err)
	_, err = e.EvalBool(props)
	var cfgErr *types.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSyntaxErrorIsConfigurationError(t *testing.T) {
	_, err := Compile("volume.size <")
	var cfgErr *types.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "volume.size <", cfgErr.Expression)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown property", "no.such.prop > 1"},
		{"division by zero", "1 / 0"},
		{"type mismatch compare", "'a' < 1"},
		{"type mismatch and", "1 and true"},
		{"non-bool ternary cond", "5 ? 1 : 2"},
		{"min arity", "min(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.src)
			require.NoError(t, err)
			_, err = e.Eval(map[string]interface{}{})
			var cfgErr *types.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %v", err)
		})
	}
}

func TestEvalBoolAndFloat(t *testing.T) {
	b, err := mustCompile(t, "1 < 2").EvalBool(nil)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = mustCompile(t, "1 + 2").EvalBool(nil)
	assert.Error(t, err)

	f, err := mustCompile(t, "2 * 21").EvalFloat(nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, f)

	_, err = mustCompile(t, "1 < 2").EvalFloat(nil)
	assert.Error(t, err)
}

func mustCompile(t *testing.T, src string) *Evaluator {
	t.Helper()
	e, err := Compile(src)
	require.NoError(t, err)
	return e
}
