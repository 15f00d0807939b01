// Package mongotest provides scratch MongoDB databases for repository tests.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mongostore "resume-builder/internal/shared/storage/mongo"
)

// EnvURI names the variable holding the test server address.
const EnvURI = "MONGO_TEST_URI"

// Open connects to the server in MONGO_TEST_URI and returns a fresh database
// with indexes applied. The database is dropped when the test ends. Tests
// are skipped when the variable is unset.
func Open(t testing.TB) *mongostore.Database {
	t.Helper()
	uri := os.Getenv(EnvURI)
	if uri == "" {
		t.Skip(EnvURI + " not set")
	}
	ctx := context.Background()
	name := "resume_builder_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	d, err := mongostore.Connect(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Drop(context.Background())
		_ = d.Close(context.Background())
	})
	require.NoError(t, d.Migrate(ctx))
	return d
}
