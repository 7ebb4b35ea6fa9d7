package protocol

import (
	"errors"
	"testing"
)

func TestDecodeProgressRequest(t *testing.T) {
	req, err := DecodeProgressRequest([]byte(`{
	  "protocol_version":"1.0",
	  "actors":["me","mate"],
	  "view":"all",
	  "sort":"impact",
	  "direction":"desc",
	  "state":{
	    "unlockedTasks":{"t1":{"me":true}},
	    "tasksCompletions":{"t0":{"me":true,"mate":false}},
	    "factions":{"me":"USEC"}
	  }
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(req.Actors) != 2 || req.Sort != "impact" || !req.State.UnlockedTasks.Has("t1", "me") {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.State.Factions["me"] != "USEC" {
		t.Fatalf("factions: %v", req.State.Factions)
	}
}

func TestDecodeProgressRequest_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"no actors":     `{"actors":[],"state":{}}`,
		"missing state": `{"actors":["me"]}`,
		"bad sort":      `{"actors":["me"],"sort":"random","state":{}}`,
		"bad flag":      `{"actors":["me"],"state":{"tasksFailed":{"t":{"me":"yes"}}}}`,
		"bad faction":   `{"actors":["me"],"state":{"factions":{"me":"SCAV"}}}`,
		"bad version":   `{"protocol_version":"0.1","actors":["me"],"state":{}}`,
	}
	for name, raw := range cases {
		if _, err := DecodeProgressRequest([]byte(raw)); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0","modes":["pve"]}`))
	if err != nil || m.Type != TypeSubscribe || m.ProtocolVersion != Version {
		t.Fatalf("DecodeBase: %+v err=%v", m, err)
	}
}
