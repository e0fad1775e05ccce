//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type checkDTO struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status"`
	NPings int64  `json:"n_pings"`
}

type timelineDTO struct {
	Rows []struct {
		Kind  string `json:"kind"`
		N     int64  `json:"n"`
		Label string `json:"label"`
	} `json:"rows"`
	Truncated bool `json:"truncated"`
}

func TestAPI_PingLifecycle(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	projectID := RandID()
	key := SeedProject(t, db, projectID, fmt.Sprintf("it-%d", projectID))

	body := HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks", key,
		[]byte(`{"name":"it-backups","timeout":3600,"grace":900}`), 201)

	var created checkDTO
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("[api] create check: %v body=%s", err, string(body))
	}
	if created.Code == "" || created.Status != "new" {
		t.Fatalf("[api] unexpected check: %+v", created)
	}

	// First signal brings the check up.
	HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/ping/"+created.Code, "", nil, 200)

	body = HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks/"+created.Code, key, nil, 200)
	var after checkDTO
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("[api] get check: %v", err)
	}
	if after.Status != "up" || after.NPings != 1 {
		t.Fatalf("[api] check after ping: %+v", after)
	}

	body = HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks/"+created.Code+"/timeline", key, nil, 200)
	var tl timelineDTO
	if err := json.Unmarshal(body, &tl); err != nil {
		t.Fatalf("[api] timeline: %v", err)
	}
	if len(tl.Rows) != 1 || tl.Rows[0].Kind != "event" || tl.Rows[0].N != 1 {
		t.Fatalf("[api] timeline rows: %+v", tl.Rows)
	}
	if tl.Truncated {
		t.Fatalf("[api] one ping should not truncate")
	}
}

func TestAPI_PingWithBodyAndExitStatus(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	projectID := RandID()
	key := SeedProject(t, db, projectID, fmt.Sprintf("it-%d", projectID))

	body := HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks", key,
		[]byte(`{"name":"it-cron"}`), 201)
	var created checkDTO
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("[api] create check: %v", err)
	}

	// Nonzero exit status records a failure.
	HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/ping/"+created.Code+"/7", "", []byte("tar: disk full"), 200)

	body = HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks/"+created.Code, key, nil, 200)
	var after checkDTO
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("[api] get check: %v", err)
	}
	if after.Status != "down" {
		t.Fatalf("[api] failed ping should flip down, got %q", after.Status)
	}

	body = HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks/"+created.Code+"/pings/1/body", key, nil, 200)
	if string(body) != "tar: disk full" {
		t.Fatalf("[api] ping body = %q", string(body))
	}
}

func TestAPI_RequiresKey(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks", "", nil, 401)
	HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks", "pk_bogus_bogus", nil, 401)
}

func TestAPI_PauseBlocksAlerting(t *testing.T) {
	cfg := LoadCfg()
	WaitHealthz(t, cfg.APIHealthURL, 90*time.Second)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	projectID := RandID()
	key := SeedProject(t, db, projectID, fmt.Sprintf("it-%d", projectID))

	body := HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks", key,
		[]byte(`{"name":"it-paused"}`), 201)
	var created checkDTO
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("[api] create check: %v", err)
	}

	HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/ping/"+created.Code, "", nil, 200)
	HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks/"+created.Code+"/pause", key, nil, 200)

	body = HTTPDoJSON(t, http.MethodGet, cfg.APIBase+"/api/v1/checks/"+created.Code, key, nil, 200)
	var after checkDTO
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("[api] get check: %v", err)
	}
	if after.Status != "paused" {
		t.Fatalf("[api] expected paused, got %q", after.Status)
	}

	// Resume on a paused check is allowed, twice is a conflict.
	HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks/"+created.Code+"/resume", key, nil, 200)
	HTTPDoJSON(t, http.MethodPost, cfg.APIBase+"/api/v1/checks/"+created.Code+"/resume", key, nil, 409)
}
