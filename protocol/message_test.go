package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shortsguard/internal/settings"
)

func TestMessageRoundTrip(t *testing.T) {
	orig, err := NewMessage(KindWhitelistAdd, WhitelistAddPayload{
		Platform: settings.PlatformYouTube,
		Type:     settings.WhitelistChannel,
		Value:    "@Test",
	})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}

	// Through a text transport and back.
	wire, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Message
	if err := json.Unmarshal(wire, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Valid() {
		t.Fatal("round-tripped message should validate")
	}
	if got.Type != KindWhitelistAdd {
		t.Errorf("type = %q, want %q", got.Type, KindWhitelistAdd)
	}

	var p WhitelistAddPayload
	if err := got.Decode(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := WhitelistAddPayload{Platform: settings.PlatformYouTube, Type: settings.WhitelistChannel, Value: "@Test"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("payload (-want +got):\n%s", diff)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	if _, err := NewMessage(Kind("INVALID_TYPE"), nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("NewMessage error = %v, want ErrUnknownKind", err)
	}

	var m Message
	if err := json.Unmarshal([]byte(`{"type":"INVALID_TYPE"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Valid() {
		t.Error("message with an unknown type must not validate")
	}
}

func TestValidKind(t *testing.T) {
	all := []Kind{
		KindGetSettings, KindUpdateSettings, KindWhitelistAdd, KindWhitelistRemove,
		KindLogBlock, KindGetLogs, KindClearLogs, KindPing,
		KindFocusStart, KindFocusCancel, KindPomodoroStart, KindPomodoroCancel,
		KindSettingsChanged,
	}
	for _, k := range all {
		if !ValidKind(k) {
			t.Errorf("ValidKind(%q) = false", k)
		}
	}
	for _, k := range []Kind{"", "ping", "GET_SETTING", "LOGIN"} {
		if ValidKind(k) {
			t.Errorf("ValidKind(%q) = true, want false", k)
		}
	}
}

func TestBareMessageHasNoPayloadField(t *testing.T) {
	m, err := NewMessage(KindPing, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"PING"}` {
		t.Errorf("wire form = %s, want no payload field", b)
	}
	var dst struct{}
	if err := m.Decode(&dst); err == nil {
		t.Error("decoding an absent payload should error")
	}
}

func TestResponseDecode(t *testing.T) {
	type stats struct {
		Count int `json:"count"`
	}

	ok := OK(stats{Count: 3})
	var got stats
	if err := ok.Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("count = %d, want 3", got.Count)
	}

	fail := Fail(errors.New("nope"))
	if fail.Success {
		t.Error("failure response marked successful")
	}
	if err := fail.Decode(&got); err == nil {
		t.Error("decoding a failure should error")
	}

	empty := OK(nil)
	if !empty.Success {
		t.Error("empty OK should be successful")
	}
	if err := empty.Decode(&got); err == nil {
		t.Error("decoding an empty success body should error")
	}
}
