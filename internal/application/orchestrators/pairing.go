package orchestrators

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/domain/access"
	"gymdesk/internal/domain/member"
)

// PairingService is the NFC service surface used for pairing.
// backend.NFC satisfies it.
type PairingService interface {
	GeneratePairingCode(ctx context.Context, memberID string) (access.PairingCode, error)
	Unpair(ctx context.Context, memberID string) error
}

// MemberGetter loads one member.
type MemberGetter interface {
	Get(ctx context.Context, id string) (member.Member, error)
}

// Translate renders a translation key in a locale.
type Translate func(locale, key string, args ...any) string

// GeneratePairingCodeInput carries input for GeneratePairingCode.
type GeneratePairingCodeInput struct {
	MemberID string
	Locale   string
}

// GeneratePairingCodeResult is the code plus whether it was emailed.
type GeneratePairingCodeResult struct {
	Code    access.PairingCode
	Member  member.Member
	Emailed bool
}

// GeneratePairingCodeDeps holds dependencies for GeneratePairingCode.
type GeneratePairingCodeDeps struct {
	NFC       PairingService
	Members   MemberGetter
	Sender    email.Sender // optional
	Translate Translate
}

// ExecuteGeneratePairingCode requests a one-time pairing code and emails it
// to the member when a sender is configured.
// PRE: MemberID is non-empty
// POST: the code is returned even when the email could not be sent
func ExecuteGeneratePairingCode(ctx context.Context, input GeneratePairingCodeInput, deps GeneratePairingCodeDeps) (GeneratePairingCodeResult, error) {
	if strings.TrimSpace(input.MemberID) == "" {
		return GeneratePairingCodeResult{}, access.ErrEmptyMemberID
	}
	code, err := deps.NFC.GeneratePairingCode(ctx, input.MemberID)
	if err != nil {
		return GeneratePairingCodeResult{}, err
	}
	res := GeneratePairingCodeResult{Code: code}
	slog.Info("nfc_event", "event", "pairing_code_generated", "member_id", input.MemberID)

	if deps.Sender == nil || deps.Members == nil {
		return res, nil
	}
	m, err := deps.Members.Get(ctx, input.MemberID)
	if err != nil {
		slog.Warn("pairing_email_skipped", "member_id", input.MemberID, "reason", "member_lookup_failed", "error", err)
		return res, nil
	}
	res.Member = m
	if !strings.Contains(m.Email, "@") {
		return res, nil
	}
	if _, err := deps.Sender.Send(ctx, pairingEmail(m, code, input.Locale, deps.Translate)); err != nil {
		slog.Warn("pairing_email_failed", "member_id", input.MemberID, "error", err)
		return res, nil
	}
	res.Emailed = true
	return res, nil
}

func pairingEmail(m member.Member, code access.PairingCode, locale string, t Translate) email.SendRequest {
	expires := ""
	if !code.ExpiresAt.IsZero() {
		expires = code.ExpiresAt.Format("2006-01-02 15:04")
	}
	lines := []string{
		t(locale, "email.pairing_greeting", m.Name),
		t(locale, "email.pairing_body", code.Code),
	}
	if expires != "" {
		lines = append(lines, t(locale, "email.pairing_expiry", expires))
	}

	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(l))
	}
	return email.SendRequest{
		To:      []string{m.Email},
		Subject: t(locale, "email.pairing_subject"),
		HTML:    b.String(),
		Text:    strings.Join(lines, "\n\n"),
	}
}

// ExecuteUnpairMember removes the NFC association of a member.
// PRE: memberID is non-empty
// POST: the NFC service no longer maps any device to memberID
func ExecuteUnpairMember(ctx context.Context, memberID string, nfc PairingService) error {
	if strings.TrimSpace(memberID) == "" {
		return access.ErrEmptyMemberID
	}
	if err := nfc.Unpair(ctx, memberID); err != nil {
		return err
	}
	slog.Info("nfc_event", "event", "member_unpaired", "member_id", memberID)
	return nil
}
