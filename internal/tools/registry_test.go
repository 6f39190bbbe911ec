package tools

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("Register and Get", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newMockTool("searchWeb")))

		got, ok := r.Get("searchWeb")
		require.True(t, ok)
		assert.Equal(t, "searchWeb", got.Name())

		_, ok = r.Get("nonexistent")
		assert.False(t, ok)
	})

	t.Run("Register duplicate", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newMockTool("dup")))
		assert.ErrorIs(t, r.Register(newMockTool("dup")), ErrToolAlreadyExists)
	})

	t.Run("Register invalid", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register(nil), ErrInvalidArgs)
		assert.ErrorIs(t, r.Register(newMockTool("")), ErrInvalidArgs)
	})

	t.Run("MustRegister panics on duplicate", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister(newMockTool("a"))
		assert.Panics(t, func() { r.MustRegister(newMockTool("a")) })
	})

}

func TestRegistryPreservesOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"searchWeb", "getStockPrices", "getIncomeStatements", "getBalanceSheets", "getCashFlowStatements"}
	for _, n := range names {
		r.MustRegister(newMockTool(n))
	}

	// Map iteration would shuffle these; the registry must not.
	for i := 0; i < 5; i++ {
		assert.Equal(t, names, r.Names())
	}

	listed := r.List()
	require.Len(t, listed, len(names))
	for i, tool := range listed {
		assert.Equal(t, names[i], tool.Name())
	}
}

func TestToProviderTools(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(newMockTool("b"))
	r.MustRegister(newMockTool("a"))

	pts, err := r.ToProviderTools()
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, "b", pts[0].Function.Name)
	assert.Equal(t, "function", pts[0].Type)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(pts[1].Function.Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestRegistryConcurrency(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(newMockTool(fmt.Sprintf("tool_%d", i)))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Names()
			_, _ = r.ToProviderTools()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
