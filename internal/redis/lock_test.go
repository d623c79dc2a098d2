package redisclient

import (
	"testing"

	"github.com/google/uuid"
)

func TestScheduleKeyScopesProviderAndDay(t *testing.T) {
	id := uuid.MustParse("a2e7e0f8-3c9f-4b15-9a93-1d2be64ab001")

	got := scheduleKey(id, "2026-09-02")
	want := "lock:schedule:a2e7e0f8-3c9f-4b15-9a93-1d2be64ab001:2026-09-02"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if scheduleKey(id, "2026-09-03") == got {
		t.Fatalf("different days must map to different lock keys")
	}
	if scheduleKey(uuid.New(), "2026-09-02") == got {
		t.Fatalf("different providers must map to different lock keys")
	}
}
