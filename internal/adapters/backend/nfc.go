package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gymdesk/internal/domain/access"
)

// NFC is the client for the NFC pairing and access-control service.
type NFC struct {
	client  *Client
	baseURL string
}

// NewNFC creates an NFC client rooted at baseURL.
func NewNFC(client *Client, baseURL string) *NFC {
	return &NFC{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

const nfcService = "nfc"

// GeneratePairingCode asks the service for a one-time pairing code for memberID.
func (n *NFC) GeneratePairingCode(ctx context.Context, memberID string) (access.PairingCode, error) {
	var code access.PairingCode
	if memberID == "" {
		return code, access.ErrEmptyMemberID
	}
	body, err := json.Marshal(map[string]string{"member_id": memberID})
	if err != nil {
		return code, err
	}
	var raw json.RawMessage
	err = n.client.do(ctx, request{
		service:     nfcService,
		method:      http.MethodPost,
		url:         n.baseURL + "/nfc/pairing-codes",
		body:        body,
		contentType: "application/json",
		dedupe:      true,
	}, &raw)
	if err != nil {
		return code, err
	}
	if err := unwrap(raw, &code); err != nil {
		return code, fmt.Errorf("nfc pairing code: %w", err)
	}
	if code.MemberID == "" {
		code.MemberID = memberID
	}
	return code, nil
}

// Unpair removes the NFC association for memberID.
func (n *NFC) Unpair(ctx context.Context, memberID string) error {
	if memberID == "" {
		return access.ErrEmptyMemberID
	}
	return n.client.do(ctx, request{
		service: nfcService,
		method:  http.MethodDelete,
		url:     n.baseURL + "/nfc/pairings/" + url.PathEscape(memberID),
	}, nil)
}

// Logs returns recent access attempts, newest first.
func (n *NFC) Logs(ctx context.Context) ([]access.Log, error) {
	logs := []access.Log{}
	if err := n.list(ctx, "/access/logs", &logs); err != nil {
		return nil, err
	}
	access.SortNewestFirst(logs)
	return logs, nil
}

// Alerts returns every security alert.
func (n *NFC) Alerts(ctx context.Context) ([]access.Alert, error) {
	alerts := []access.Alert{}
	if err := n.list(ctx, "/access/alerts", &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// ResolveAlert marks alert id as resolved.
func (n *NFC) ResolveAlert(ctx context.Context, id string) error {
	body, _ := json.Marshal(map[string]bool{"resolved": true})
	return n.client.do(ctx, request{
		service:     nfcService,
		method:      http.MethodPatch,
		url:         n.baseURL + "/access/alerts/" + url.PathEscape(id),
		body:        body,
		contentType: "application/json",
	}, nil)
}

func (n *NFC) list(ctx context.Context, path string, out any) error {
	var raw json.RawMessage
	err := n.client.do(ctx, request{
		service: nfcService,
		method:  http.MethodGet,
		url:     n.baseURL + path,
		dedupe:  true,
	}, &raw)
	if err != nil {
		return err
	}
	if err := unwrap(raw, out); err != nil {
		return fmt.Errorf("nfc %s: %w", path, err)
	}
	return nil
}
