package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() keeps tests isolated from each other.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it cannot be read as query parameters.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		safeName,
	)

	db, err := open(context.Background(), dsn, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedOwner creates a user owning one workspace and returns both.
func seedOwner(t *testing.T, db *DB, email string) (model.User, model.Workspace) {
	t.Helper()
	ctx := context.Background()
	repo := NewWorkspaceRepo(db)

	user, err := repo.CreateUser(ctx, model.User{Name: "Owner " + email, Email: email})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ws, err := repo.CreateWorkspace(ctx, model.Workspace{Name: "Chambers of " + email, OwnerID: user.ID})
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return user, ws
}
