package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/member"
)

type mockNFC struct {
	unpaired []string
	err      error
}

func (m *mockNFC) GeneratePairingCode(_ context.Context, memberID string) (access.PairingCode, error) {
	if m.err != nil {
		return access.PairingCode{}, m.err
	}
	return access.PairingCode{Code: "482913", MemberID: memberID, ExpiresAt: fixedNow.Add(10 * time.Minute)}, nil
}

func (m *mockNFC) Unpair(_ context.Context, memberID string) error {
	m.unpaired = append(m.unpaired, memberID)
	return m.err
}

type mockMembers struct {
	members []member.Member
	patched map[string]any
	err     error
}

func (m *mockMembers) Get(_ context.Context, id string) (member.Member, error) {
	for _, mem := range m.members {
		if mem.ID == id {
			return mem, nil
		}
	}
	return member.Member{}, errors.New("not found")
}

func (m *mockMembers) List(context.Context) ([]member.Member, error) {
	return m.members, m.err
}

func (m *mockMembers) Patch(_ context.Context, id string, fields map[string]any) (member.Member, error) {
	m.patched = fields
	for _, mem := range m.members {
		if mem.ID == id {
			mem.Name, _ = fields["name"].(string)
			return mem, nil
		}
	}
	return member.Member{}, errors.New("not found")
}

func fakeTranslate(locale, key string, args ...any) string {
	return locale + ":" + key + fmt.Sprint(args...)
}

// TestGeneratePairingCode_Emails verifies the code is returned and mailed.
func TestGeneratePairingCode_Emails(t *testing.T) {
	sender := &email.RecordingSender{}
	deps := GeneratePairingCodeDeps{
		NFC:       &mockNFC{},
		Members:   &mockMembers{members: []member.Member{{ID: "m1", Name: "Lu", Email: "lu@gym.test"}}},
		Sender:    sender,
		Translate: fakeTranslate,
	}
	res, err := ExecuteGeneratePairingCode(context.Background(), GeneratePairingCodeInput{MemberID: "m1", Locale: "en"}, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Code.Code != "482913" || !res.Emailed {
		t.Errorf("result = %+v", res)
	}
	sent := sender.Sent()
	if len(sent) != 1 || sent[0].To[0] != "lu@gym.test" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(sent[0].Text, "482913") || sent[0].Subject != "en:email.pairing_subject" {
		t.Errorf("email = %+v", sent[0])
	}
}

// TestGeneratePairingCode_EmailFailureStillReturnsCode verifies delivery is best effort.
func TestGeneratePairingCode_EmailFailureStillReturnsCode(t *testing.T) {
	deps := GeneratePairingCodeDeps{
		NFC:       &mockNFC{},
		Members:   &mockMembers{members: []member.Member{{ID: "m1", Email: "lu@gym.test"}}},
		Sender:    &email.RecordingSender{Err: errUpstream},
		Translate: fakeTranslate,
	}
	res, err := ExecuteGeneratePairingCode(context.Background(), GeneratePairingCodeInput{MemberID: "m1"}, deps)
	if err != nil || res.Emailed || res.Code.Code == "" {
		t.Errorf("result = %+v, err = %v", res, err)
	}
}

// TestGeneratePairingCode_Errors covers missing member and service failure.
func TestGeneratePairingCode_Errors(t *testing.T) {
	if _, err := ExecuteGeneratePairingCode(context.Background(), GeneratePairingCodeInput{}, GeneratePairingCodeDeps{NFC: &mockNFC{}}); !errors.Is(err, access.ErrEmptyMemberID) {
		t.Errorf("empty member err = %v", err)
	}
	if _, err := ExecuteGeneratePairingCode(context.Background(), GeneratePairingCodeInput{MemberID: "m1"}, GeneratePairingCodeDeps{NFC: &mockNFC{err: errUpstream}}); !errors.Is(err, errUpstream) {
		t.Errorf("service err = %v", err)
	}
}

// TestUnpairMember verifies the association is removed.
func TestUnpairMember(t *testing.T) {
	nfc := &mockNFC{}
	if err := ExecuteUnpairMember(context.Background(), "m1", nfc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nfc.unpaired) != 1 || nfc.unpaired[0] != "m1" {
		t.Errorf("unpaired = %v", nfc.unpaired)
	}
	if err := ExecuteUnpairMember(context.Background(), " ", nfc); !errors.Is(err, access.ErrEmptyMemberID) {
		t.Errorf("blank member err = %v", err)
	}
}
