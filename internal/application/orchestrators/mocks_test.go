package orchestrators

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gymdesk/internal/adapters/storage/account"
	domainAccount "gymdesk/internal/domain/account"
	"gymdesk/internal/domain/session"
)

var fixedNow = time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC) // a Monday

func testNow() time.Time { return fixedNow }

func testToken() (string, error) { return "sess-token", nil }

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]domainAccount.Account
	saves    int
}

func newMockAccountStore(accts ...domainAccount.Account) *mockAccountStore {
	m := &mockAccountStore{accounts: map[string]domainAccount.Account{}}
	for _, a := range accts {
		m.accounts[strings.ToLower(a.Email)] = a
	}
	return m
}

func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (domainAccount.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return domainAccount.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (m *mockAccountStore) Save(_ context.Context, a domainAccount.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.accounts[strings.ToLower(a.Email)] = a
	return nil
}

type mockSessionStore struct {
	saved   []session.Session
	deleted []string
	err     error
}

func (m *mockSessionStore) Save(_ context.Context, s session.Session) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockSessionStore) Delete(_ context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	return m.err
}

type countingEvents struct {
	events []string
}

func (c *countingEvents) AuthEvent(event string) { c.events = append(c.events, event) }

var errUpstream = errors.New("upstream down")
