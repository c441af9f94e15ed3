package ingredient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/repository/common"
)

// mockCatalog for testing
type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) LoadAll(ctx context.Context) ([]model.IngredientCatalogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IngredientCatalogEntry), args.Error(1)
}

func (m *mockCatalog) GetOrCreate(ctx context.Context, q common.Querier, name, category string) (model.IngredientCatalogEntry, error) {
	args := m.Called(ctx, q, name, category)
	return args.Get(0).(model.IngredientCatalogEntry), args.Error(1)
}

func catalog() []model.IngredientCatalogEntry {
	return []model.IngredientCatalogEntry{
		{ID: 1, Name: "Tomato", Category: "Nightshade"},
		{ID: 2, Name: "Carrot", Category: "Root Veg"},
		{ID: 3, Name: "green onion", Category: "Aromatic Veg"},
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Fresh Diced Tomatoes", "Tomato"},
		{"Diced organic carrots", "Carrot"},
		{"Scallions", "Green onion"},
		{"spring onions", "Green onion"},
		{"Garbanzo Beans", "Chickpea"},
		{"cilantro", "Coriander"},
		{"Berries", "Berry"},
		{"Radishes", "Radish"},
		{"boxes", "box"},
		{"Swiss cheese", "Swiss cheese"},
		{"Potatoes", "Potato"},
		{"Buses", "Bu"},
		{"salt, to taste", "Salt"},
		{"Extra-Virgin Olive Oil", "Extra-virgin olive oil"},
		{"Jalapeño", "Jalape o"},
		{"  ", ""},
		{"fresh chopped", ""},
		{"Gas", "Ga"},
		{"as", "as"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, capitalizeFirst(tt.want), Canonicalize(tt.raw))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	for _, raw := range []string{
		"Fresh Diced Tomatoes", "Scallions", "garbanzo beans", "Boxes of Peppers",
		"Chicken thighs", "Sea salt flakes", "Bay leaves", "Potatoes", "Couscous", "Buses", "tos",
	} {
		once := Canonicalize(raw)
		assert.Equal(t, once, Canonicalize(once), raw)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 1.0, similarity("Tomato", "tomato"))
	assert.InDelta(t, 1-1.0/7, similarity("Tomatoe", "Tomato"), 1e-9)
	assert.Equal(t, 0.0, similarity("abc", ""))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 1, editDistance("Jalapeño", "jalapeno"))
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		category    string
		threshold   float64
		setup       func(*mockCatalog)
		wantID      int64
		wantOK      bool
		wantCreated bool
	}{
		{name: "exact after canonicalization", raw: "Fresh Diced Tomatoes", threshold: 0.8, wantID: 1, wantOK: true},
		{name: "matches normalized name", raw: "Scallions", threshold: 0.8, wantID: 3, wantOK: true},
		{name: "fuzzy match above threshold", raw: "Tomatoe", threshold: 0.8, wantID: 1, wantOK: true},
		{
			name:      "fuzzy match below threshold creates",
			raw:       "Tomatoe",
			category:  "Nightshade",
			threshold: 0.9,
			setup: func(m *mockCatalog) {
				m.On("GetOrCreate", mock.Anything, nil, "Tomatoe", "Nightshade").
					Return(model.IngredientCatalogEntry{ID: 10, Name: "Tomatoe", Category: "Nightshade"}, nil)
			},
			wantID: 10, wantOK: true, wantCreated: true,
		},
		{
			name:      "unknown creates with default category",
			raw:       "Parsnips",
			threshold: 0.8,
			setup: func(m *mockCatalog) {
				m.On("GetOrCreate", mock.Anything, nil, "Parsnip", "Other").
					Return(model.IngredientCatalogEntry{ID: 11, Name: "Parsnip", Category: "Other"}, nil)
			},
			wantID: 11, wantOK: true, wantCreated: true,
		},
		{name: "empty canonical name", raw: "fresh, chopped!", threshold: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockCatalog{}
			store.On("LoadAll", mock.Anything).Return(catalog(), nil)
			if tt.setup != nil {
				tt.setup(store)
			}

			r, err := NewResolver(context.Background(), store, tt.threshold, nil)
			require.NoError(t, err)

			id, ok, err := r.Resolve(context.Background(), nil, tt.raw, tt.category)

			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			if tt.wantCreated {
				assert.Equal(t, 4, r.Len())
			} else {
				assert.Equal(t, 3, r.Len())
			}
			store.AssertExpectations(t)
		})
	}
}

func TestResolver_CreatedEntryIsReused(t *testing.T) {
	store := &mockCatalog{}
	store.On("LoadAll", mock.Anything).Return(catalog(), nil)
	store.On("GetOrCreate", mock.Anything, nil, "Parsnip", "Root Veg").
		Return(model.IngredientCatalogEntry{ID: 11, Name: "Parsnip", Category: "Root Veg"}, nil).Once()

	r, err := NewResolver(context.Background(), store, 0.8, nil)
	require.NoError(t, err)

	first, _, err := r.Resolve(context.Background(), nil, "parsnips", "Root Veg")
	require.NoError(t, err)
	second, _, err := r.Resolve(context.Background(), nil, "Parsnip", "Root Veg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	store.AssertNumberOfCalls(t, "GetOrCreate", 1)
}

func TestResolver_Deterministic(t *testing.T) {
	store := &mockCatalog{}
	store.On("LoadAll", mock.Anything).Return([]model.IngredientCatalogEntry{
		{ID: 1, Name: "Bean"},
		{ID: 2, Name: "Bear"},
	}, nil)

	for range 5 {
		r, err := NewResolver(context.Background(), store, 0.5, nil)
		require.NoError(t, err)
		id, ok, err := r.Resolve(context.Background(), nil, "Beat", "")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(1), id, "ties go to the first entry")
	}
}

func TestResolver_MarkReset(t *testing.T) {
	store := &mockCatalog{}
	store.On("LoadAll", mock.Anything).Return(catalog(), nil)
	store.On("GetOrCreate", mock.Anything, nil, "Parsnip", "Other").
		Return(model.IngredientCatalogEntry{ID: 11, Name: "Parsnip", Category: "Other"}, nil)

	r, err := NewResolver(context.Background(), store, 0.8, nil)
	require.NoError(t, err)

	mark := r.Mark()
	_, _, err = r.Resolve(context.Background(), nil, "Parsnip", "")
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	r.Reset(mark)
	assert.Equal(t, 3, r.Len())

	_, _, err = r.Resolve(context.Background(), nil, "Parsnip", "")
	require.NoError(t, err)
	store.AssertNumberOfCalls(t, "GetOrCreate", 2)
}

func TestResolver_Errors(t *testing.T) {
	t.Run("load failure", func(t *testing.T) {
		store := &mockCatalog{}
		store.On("LoadAll", mock.Anything).Return(nil, errors.New("db down"))
		_, err := NewResolver(context.Background(), store, 0.8, nil)
		assert.EqualError(t, err, "db down")
	})

	t.Run("create failure", func(t *testing.T) {
		store := &mockCatalog{}
		store.On("LoadAll", mock.Anything).Return([]model.IngredientCatalogEntry{}, nil)
		store.On("GetOrCreate", mock.Anything, nil, "Leek", "Other").
			Return(model.IngredientCatalogEntry{}, errors.New("insert failed"))

		r, err := NewResolver(context.Background(), store, 0.8, nil)
		require.NoError(t, err)
		_, ok, err := r.Resolve(context.Background(), nil, "leeks", "")
		assert.Error(t, err)
		assert.False(t, ok)
		assert.Zero(t, r.Len())
	})
}

func TestNewResolver_ClampsThreshold(t *testing.T) {
	store := &mockCatalog{}
	store.On("LoadAll", mock.Anything).Return([]model.IngredientCatalogEntry{}, nil)

	r, err := NewResolver(context.Background(), store, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.threshold)

	r, err = NewResolver(context.Background(), store, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.threshold)
}
