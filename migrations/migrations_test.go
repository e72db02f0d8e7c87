package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScripts(t *testing.T) {
	up, err := Scripts(Up)
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.Equal(t, "001_create_schema.up.sql", up[0].Name)
	assert.Contains(t, up[0].SQL, "CREATE TABLE IF NOT EXISTS observation_tables")
	assert.Contains(t, up[0].SQL, "vals        DOUBLE PRECISION[]")

	down, err := Scripts(Down)
	require.NoError(t, err)
	require.Len(t, down, len(up))
	assert.Contains(t, down[0].SQL, "DROP TABLE IF EXISTS observation_tables")

	_, err = Scripts("sideways")
	assert.Error(t, err)
}
