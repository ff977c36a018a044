package database

import (
	"errors"
	"testing"

	"github.com/stardrift/server/internal/testutil"
	"github.com/stardrift/server/internal/worldmap"
)

func setupStorage(t *testing.T) (*PlayerStorage, *SnapshotStorage) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() {
		testutil.CleanupTestDB(t, db)
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return NewPlayerStorage(db), NewSnapshotStorage(db)
}

func TestPlayerCreateAndGet(t *testing.T) {
	players, _ := setupStorage(t)
	fixtures := testutil.NewTestFixtures()
	data := fixtures.NewTestPlayer()

	created, err := players.Create(data.Username, data.Email, "hash123")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created player has no ID")
	}
	if created.Role != "player" {
		t.Fatalf("default role = %q", created.Role)
	}

	byName, err := players.GetByUsername(data.Username)
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if byName == nil || byName.ID != created.ID {
		t.Fatalf("GetByUsername returned %+v", byName)
	}

	byID, err := players.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID == nil || byID.Username != data.Username {
		t.Fatalf("GetByID returned %+v", byID)
	}

	missing, err := players.GetByUsername("nobody-here")
	if err != nil {
		t.Fatalf("GetByUsername for missing player errored: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing player lookup returned %+v", missing)
	}
}

func TestPlayerDuplicateConstraints(t *testing.T) {
	players, _ := setupStorage(t)
	fixtures := testutil.NewTestFixtures()
	data := fixtures.NewTestPlayer()

	if _, err := players.Create(data.Username, data.Email, "hash"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := players.Create(data.Username, testutil.RandomEmail(), "hash"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username error = %v, expected ErrUsernameTaken", err)
	}
	if _, err := players.Create(testutil.RandomUsername(), data.Email, "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email error = %v, expected ErrEmailTaken", err)
	}
}

func TestPlayerUpdatePosition(t *testing.T) {
	players, _ := setupStorage(t)
	fixtures := testutil.NewTestFixtures()
	data := fixtures.NewTestPlayer()

	created, err := players.Create(data.Username, data.Email, "hash")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	position := worldmap.Point{X: 2048.5, Y: -512.25}
	if err := players.UpdatePosition(created.ID, position); err != nil {
		t.Fatalf("UpdatePosition failed: %v", err)
	}

	reloaded, err := players.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.LastPosition != position {
		t.Fatalf("position = %+v, expected %+v", reloaded.LastPosition, position)
	}

	if err := players.UpdatePosition(999999, position); err == nil {
		t.Fatal("UpdatePosition for missing player succeeded")
	}
}

func TestPlayerTouchLastLogin(t *testing.T) {
	players, _ := setupStorage(t)
	fixtures := testutil.NewTestFixtures()
	data := fixtures.NewTestPlayer()

	created, err := players.Create(data.Username, data.Email, "hash")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.LastLogin != nil {
		t.Fatal("new player already has a last login")
	}

	if err := players.TouchLastLogin(created.ID); err != nil {
		t.Fatalf("TouchLastLogin failed: %v", err)
	}
	reloaded, err := players.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.LastLogin == nil {
		t.Fatal("last login not recorded")
	}
}
