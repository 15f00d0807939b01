package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestIndexesDeclareUniqueSession(t *testing.T) {
	idx := Indexes()
	require.Contains(t, idx, ColPayments)

	var found bool
	for _, m := range idx[ColPayments] {
		keys, ok := m.Keys.(bson.D)
		require.True(t, ok)
		if len(keys) == 1 && keys[0].Key == "session_id" {
			found = true
			assert.NotNil(t, m.Options)
		}
	}
	assert.True(t, found, "session_id index missing")
}

func TestConnectRequiresURI(t *testing.T) {
	_, err := Connect(context.Background(), "", "db")
	assert.Error(t, err)
}

// TestOpenDatabase needs a live server via MONGO_TEST_URI.
func TestOpenDatabase(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	d, err := Connect(context.Background(), uri, "resume_builder_test")
	require.NoError(t, err)
	defer d.Close(context.Background())
	require.NoError(t, d.Migrate(context.Background()))
}
