package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bistro-ai/internal/domain"
)

func searchSchema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        "search_restaurants",
		Description: "Search for restaurants by cuisine type or name",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	}
}

func TestNewBuildsCatalog(t *testing.T) {
	c, err := New([]domain.ToolSchema{
		searchSchema(),
		{Name: "get_order_status", Description: "Get order status"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Has("search_restaurants"))
	assert.False(t, c.Has("place_order"))

	got, ok := c.Get("get_order_status")
	require.True(t, ok)
	// Tools without a schema get the empty-object default.
	assert.JSONEq(t, `{"type":"object"}`, string(got.Parameters))
}

func TestNewRejectsMalformedSchema(t *testing.T) {
	_, err := New([]domain.ToolSchema{{
		Name:       "broken",
		Parameters: json.RawMessage(`{"type": 42}`),
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToolSchema))
}

func TestNewRejectsDuplicatesAndEmptyNames(t *testing.T) {
	_, err := New([]domain.ToolSchema{searchSchema(), searchSchema()})
	assert.True(t, errors.Is(err, domain.ErrInvalidToolSchema))

	_, err = New([]domain.ToolSchema{{Name: ""}})
	assert.True(t, errors.Is(err, domain.ErrInvalidToolSchema))
}

func TestDeclarationsIsACopy(t *testing.T) {
	c, err := New([]domain.ToolSchema{searchSchema()})
	require.NoError(t, err)

	decls := c.Declarations()
	decls[0].Name = "mutated"

	again := c.Declarations()
	assert.Equal(t, "search_restaurants", again[0].Name)
}
