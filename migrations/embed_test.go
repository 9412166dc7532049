package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(FS, down); err != nil {
			t.Errorf("%s has no matching %s", up, down)
		}
	}
}

func TestActiveSlotIndexExists(t *testing.T) {
	data, err := fs.ReadFile(FS, "000002_appointments.up.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(data)
	if !strings.Contains(sql, "appointments_active_slot_idx") || !strings.Contains(sql, "WHERE status <> 'cancelled'") {
		t.Fatalf("expected the partial unique slot index in the appointments migration")
	}
}
