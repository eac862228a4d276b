package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `[
	{"id": 1, "name": "Keyboard", "description": "Tenkeyless", "price": "89.99"},
	{"id": 2, "name": "Cable Tie", "description": "Velcro", "price": 0.01}
]`

func TestReadProducts_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	products, err := readProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Keyboard", products[0].Name)
	assert.True(t, decimal.RequireFromString("0.01").Equal(products[1].Price))
}

func TestReadProducts_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(seedJSON))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	products, err := readProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(2), products[1].ID)
}

func TestDecodeProducts_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not an array", body: `{"id":1}`},
		{name: "zero id", body: `[{"id":0,"name":"x","price":"1"}]`},
		{name: "negative price", body: `[{"id":1,"name":"x","price":"-1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeProducts(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestReadProducts_MissingFile(t *testing.T) {
	_, err := readProducts(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
