//go:build integration

package integration

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulsekeep/pulsekeep/internal/domain/events"
)

func TestSentinel_FlipsOverdueCheck(t *testing.T) {
	cfg := LoadCfg()
	WaitTCP(t, "kafka", cfg.KafkaBootstrap, 60*time.Second)
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.FlipsTopic)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	projectID := RandID()
	checkID := RandID()
	SeedProject(t, db, projectID, fmt.Sprintf("it-%d", projectID))

	code := uuid.New()
	overdue := time.Now().UTC().Add(-time.Minute)
	SeedCheck(t, db, checkID, projectID, code, "up", &overdue)

	WaitCheckStatus(t, db, checkID, "down", 30*time.Second)

	ok, oldS, newS := FindFlip(t, db, checkID)
	if !ok || oldS != "up" || newS != "down" {
		t.Fatalf("flip row: ok=%v %s->%s", ok, oldS, newS)
	}

	group := fmt.Sprintf("sentinel-it-%d", checkID)
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		ev, got := ReadOneJSON[events.FlipEvent](t, cfg.KafkaBootstrap, cfg.FlipsTopic, group, 10*time.Second)
		if !got {
			continue
		}
		// Other tests publish to the same topic; match on check id.
		if ev.CheckID != checkID {
			continue
		}
		if ev.NewStatus != "down" || ev.OldStatus != "up" || ev.CheckCode != code {
			t.Fatalf("flip event: %+v", ev)
		}
		return
	}
	t.Fatalf("no flip event for check %d", checkID)
}

func TestSentinel_LeavesHealthyChecksAlone(t *testing.T) {
	cfg := LoadCfg()
	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	projectID := RandID()
	checkID := RandID()
	SeedProject(t, db, projectID, fmt.Sprintf("it-%d", projectID))

	healthy := time.Now().UTC().Add(time.Hour)
	SeedCheck(t, db, checkID, projectID, uuid.New(), "up", &healthy)

	// A few sweep ticks worth of waiting.
	time.Sleep(6 * time.Second)

	s, err := GetCheckStatus(t, db, checkID)
	if err != nil || s != "up" {
		t.Fatalf("status = %q err=%v, want up", s, err)
	}
	if ok, _, _ := FindFlip(t, db, checkID); ok {
		t.Fatalf("unexpected flip for healthy check")
	}
}
