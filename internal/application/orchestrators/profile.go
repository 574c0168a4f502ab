package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gymdesk/internal/domain/member"
)

// ErrNoMemberRecord is returned when the signed-in user has no member record.
var ErrNoMemberRecord = errors.New("no member record matches your account")

// MemberProfileService is the members resource surface used by the client portal.
type MemberProfileService interface {
	List(ctx context.Context) ([]member.Member, error)
	Patch(ctx context.Context, id string, fields map[string]any) (member.Member, error)
}

// FindOwnMember returns the member record whose email matches the signed-in user.
func FindOwnMember(ctx context.Context, email string, members MemberProfileService) (member.Member, error) {
	all, err := members.List(ctx)
	if err != nil {
		return member.Member{}, err
	}
	m, ok := member.FindByEmail(all, email)
	if !ok {
		return member.Member{}, ErrNoMemberRecord
	}
	return m, nil
}

// UpdateProfileInput carries input for UpdateProfile.
type UpdateProfileInput struct {
	Email string // of the signed-in user
	Name  string
}

// ExecuteUpdateProfile lets a member change their display name.
// PRE: Email identifies the signed-in user
// POST: the member record's name is Name; other fields are untouched
func ExecuteUpdateProfile(ctx context.Context, input UpdateProfileInput, members MemberProfileService) (member.Member, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return member.Member{}, member.ErrEmptyName
	}
	if len(name) > member.MaxNameLength {
		return member.Member{}, member.ErrNameTooLong
	}
	m, err := FindOwnMember(ctx, input.Email, members)
	if err != nil {
		return member.Member{}, err
	}
	updated, err := members.Patch(ctx, m.ID, map[string]any{"name": name})
	if err != nil {
		return member.Member{}, err
	}
	if updated.ID == "" {
		m.Name = name
		updated = m
	}
	slog.Info("member_event", "event", "profile_updated", "member_id", m.ID)
	return updated, nil
}
