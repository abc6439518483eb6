// internal/testutil/db.go
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/app/store/oauthstate"
	"github.com/dalemusser/paytrack/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// TestContext returns a context with a timeout suitable for test DB calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// SetupTestDB connects to a local MongoDB, creates a database unique to the
// test, ensures indexes, and registers cleanup that drops it. Tests that
// need a database skip automatically when no server is reachable, so the
// suite passes on machines without Mongo.
//
// Set PAYTRACK_TEST_MONGO_URI to point somewhere other than localhost.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("PAYTRACK_TEST_MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("skipping: cannot connect to test MongoDB at %s: %v", uri, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("skipping: test MongoDB at %s not reachable: %v", uri, err)
	}

	dbName := fmt.Sprintf("paytrack_test_%d", time.Now().UnixNano())
	db := client.Database(dbName)

	idxCtx, idxCancel := TestContext()
	defer idxCancel()
	if err := indexes.EnsureAll(idxCtx, db); err != nil {
		t.Fatalf("failed to ensure test indexes: %v", err)
	}
	if err := oauthstate.New(db).EnsureIndexes(idxCtx); err != nil {
		t.Fatalf("failed to ensure oauth state indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	return db
}
