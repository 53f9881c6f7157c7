package state

import (
	"errors"
	"testing"
)

func TestDecodeActionAppendChannels(t *testing.T) {
	raw := []byte(`{"action":"append_channels","items":[{"id":"a","name":"alpha"}],"nextToken":"t1"}`)
	a, err := DecodeAction(KindAppendChannels, raw)
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}

	act, ok := a.(AppendChannels)
	if !ok {
		t.Fatalf("Expected AppendChannels, got %T", a)
	}
	if len(act.Items) != 1 || act.Items[0].ID != "a" {
		t.Errorf("Expected one channel a, got %+v", act.Items)
	}
	if act.NextToken != "t1" {
		t.Errorf("Expected nextToken t1, got %q", act.NextToken)
	}
}

func TestDecodeActionPrependMessage(t *testing.T) {
	raw := []byte(`{"action":"prepend_message","message":{"id":"m1","messageChannelId":"a","body":"hi"}}`)
	a, err := DecodeAction(KindPrependMessage, raw)
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}

	act := a.(PrependMessage)
	if act.Message.ID != "m1" || act.Message.MessageChannelID != "a" {
		t.Errorf("Expected m1 in channel a, got %+v", act.Message)
	}
	if act.Message.Body != "hi" {
		t.Errorf("Expected body carried through, got %q", act.Message.Body)
	}
}

func TestDecodeActionSetMyInfo(t *testing.T) {
	raw := []byte(`{"action":"set_my_info","profile":{"id":"user-1"}}`)
	a, err := DecodeAction(KindSetMyInfo, raw)
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}

	if a.(SetMyInfo).Profile.ID != "user-1" {
		t.Errorf("Expected profile user-1, got %+v", a)
	}
}

func TestDecodeActionAllKinds(t *testing.T) {
	cases := []struct {
		kind string
		raw  string
	}{
		{KindAppendChannels, `{"items":[],"nextToken":""}`},
		{KindPrependChannel, `{"channel":{"id":"a"}}`},
		{KindSetChannels, `{"channels":{"items":[],"nextToken":""}}`},
		{KindSetMessages, `{"channelId":"a","messages":{"items":[]}}`},
		{KindPrependMessage, `{"message":{"id":"m1","messageChannelId":"a"}}`},
		{KindAppendMessages, `{"channelId":"a","messages":{"items":[]}}`},
		{KindSetMyInfo, `{"profile":{"id":"u"}}`},
		{KindUpdateChannel, `{"id":"a","name":"n","updatedAt":"now","creatorId":"u"}`},
		{KindMoveToFront, `{"channelId":"a"}`},
	}

	for _, tc := range cases {
		a, err := DecodeAction(tc.kind, []byte(tc.raw))
		if err != nil {
			t.Errorf("DecodeAction(%s) failed: %v", tc.kind, err)
			continue
		}
		if a.Kind() != tc.kind {
			t.Errorf("Expected kind %q, got %q", tc.kind, a.Kind())
		}
	}
}

func TestDecodeActionUnknownKind(t *testing.T) {
	_, err := DecodeAction("set_theme", []byte(`{}`))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
}

func TestDecodeActionMissingLocator(t *testing.T) {
	cases := []struct {
		kind string
		raw  string
	}{
		{KindPrependChannel, `{"channel":{"name":"no id"}}`},
		{KindSetMessages, `{"messages":{"items":[]}}`},
		{KindPrependMessage, `{"message":{"id":"m1"}}`},
		{KindAppendMessages, `{"messages":{"items":[]}}`},
		{KindUpdateChannel, `{"name":"n"}`},
		{KindMoveToFront, `{}`},
	}

	for _, tc := range cases {
		_, err := DecodeAction(tc.kind, []byte(tc.raw))
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("DecodeAction(%s) expected ErrMissingField, got %v", tc.kind, err)
		}
	}
}

func TestDecodeActionBadJSON(t *testing.T) {
	_, err := DecodeAction(KindSetChannels, []byte(`{"channels":`))
	if err == nil {
		t.Error("Expected error for truncated payload")
	}
}
