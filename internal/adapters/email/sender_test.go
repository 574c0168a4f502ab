package email

import (
	"context"
	"errors"
	"testing"
)

func TestSendRequest_Validate(t *testing.T) {
	if err := (SendRequest{Subject: "x"}).Validate(); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("no recipients err = %v", err)
	}
	if err := (SendRequest{To: []string{"a@b.c"}}).Validate(); err == nil {
		t.Error("missing subject should fail")
	}
}

func TestNoopSender_Send(t *testing.T) {
	res, err := NewNoopSender().Send(context.Background(), SendRequest{To: []string{"a@b.c"}, Subject: "hi"})
	if err != nil || res.MessageID == "" {
		t.Errorf("Send = %+v, %v", res, err)
	}
}

func TestRecordingSender(t *testing.T) {
	s := &RecordingSender{}
	s.Send(context.Background(), SendRequest{To: []string{"a@b.c"}, Subject: "one"})
	if got := s.Sent(); len(got) != 1 || got[0].Subject != "one" {
		t.Errorf("Sent = %+v", got)
	}
	s.Err = errors.New("down")
	if _, err := s.Send(context.Background(), SendRequest{To: []string{"a@b.c"}, Subject: "two"}); err == nil {
		t.Error("expected configured error")
	}
}
