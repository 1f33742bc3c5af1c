package browser

import (
	"strings"
	"testing"
)

func TestDecodeSignal(t *testing.T) {
	s, err := DecodeSignal(`{"kind":"mutation","targets":["#story-history",".mid-synopsis-area"]}`)
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind != "mutation" || len(s.Targets) != 2 {
		t.Errorf("got %+v", s)
	}

	s, err = DecodeSignal(`{"kind":"save","selector":"#story-history"}`)
	if err != nil || s.Selector != "#story-history" {
		t.Errorf("save: got %+v, %v", s, err)
	}

	for _, bad := range []string{`{"kind":"scroll"}`, `{"kind":"input"}`, `not json`} {
		if _, err := DecodeSignal(bad); err == nil {
			t.Errorf("DecodeSignal(%s): expected error", bad)
		}
	}
}

func TestBridgeScriptUsesBinding(t *testing.T) {
	if !strings.Contains(bridgeJS, bindingName) {
		t.Errorf("bridge script does not call %s", bindingName)
	}
	if !strings.HasPrefix(bridgeJS, "(selectors) =>") {
		t.Error("bridge script must be a function taking the selectors")
	}
}
