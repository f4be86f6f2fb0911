package mongoutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{Address: []string{"db1:27017", "db2:27017"}, Database: "jircord", Username: "root", Password: "pw"}
	require.NoError(t, cfg.ValidateAndSetDefaults())
	require.Equal(t, defaultMaxPoolSize, cfg.MaxPoolSize)
	require.Equal(t, defaultMaxRetry, cfg.MaxRetry)
	require.Equal(t, "mongodb://root:pw@db1:27017,db2:27017/jircord?authSource=jircord&maxPoolSize=100", cfg.Uri)

	anon := &Config{Address: []string{"localhost:27017"}, Database: "jircord", AuthSource: "admin"}
	require.NoError(t, anon.ValidateAndSetDefaults())
	require.Equal(t, "mongodb://localhost:27017/jircord?authSource=admin&maxPoolSize=100", anon.Uri)

	keep := &Config{Uri: "mongodb://example:27017", Database: "jircord"}
	require.NoError(t, keep.ValidateAndSetDefaults())
	require.Equal(t, "mongodb://example:27017", keep.Uri)
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	require.Error(t, (&Config{Database: "x"}).ValidateAndSetDefaults())
	require.Error(t, (&Config{Uri: "mongodb://x"}).ValidateAndSetDefaults())
}
