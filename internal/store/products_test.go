package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductFilterWhere(t *testing.T) {
	where, args := ProductFilter{}.where()
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = ProductFilter{Category: "books", Search: "go"}.where()
	assert.Equal(t, " WHERE category = $1 AND (name ILIKE $2 OR description ILIKE $2)", where)
	assert.Equal(t, []interface{}{"books", "%go%"}, args)
}

func TestListProductsPlaceholders(t *testing.T) {
	s, mock := newMockStore(t, 0)

	mock.ExpectQuery(`FROM products WHERE category = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("books", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	products, err := s.ListProducts(context.Background(), ProductFilter{Category: "books", Limit: 10, Offset: 20})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductNotFound(t *testing.T) {
	s, mock := newMockStore(t, 0)

	mock.ExpectExec("DELETE FROM products").WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteProduct(context.Background(), 3), ErrNotFound)
}
