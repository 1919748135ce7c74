// Package remote is the HTTP and websocket client for the FamilyOS server.
// Client satisfies backend.Backend, so the resolver, the feed reconciler and
// the composer can run against a live server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/familyos/internal/backend"
	"github.com/dukerupert/familyos/internal/model"
)

var _ backend.Backend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do sends a JSON request and decodes a JSON answer into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, contentType, r, out)
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload) == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func familyPath(familyID string, parts ...string) string {
	p := "/api/families/" + url.PathEscape(familyID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

type session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// SignUp creates an account and keeps its session token.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*model.User, error) {
	var s session
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-up", map[string]string{
		"email": email, "password": password, "name": name,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s.User, nil
}

// SignIn exchanges credentials for a session token and keeps it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	var s session
	err := c.do(ctx, http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email": email, "password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s.User, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ActiveMemberships lists the active memberships of the session's user. The
// server answers for the token's identity, so userID must be that user.
func (c *Client) ActiveMemberships(ctx context.Context, userID int64) ([]model.Membership, error) {
	var list []model.Membership
	if err := c.do(ctx, http.MethodGet, "/api/memberships", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// RenameFamily changes a family's name. Owners and admins only.
func (c *Client) RenameFamily(ctx context.Context, familyID, name string) (*model.Family, error) {
	var f model.Family
	if err := c.do(ctx, http.MethodPatch, familyPath(familyID), map[string]string{"name": name}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFamily creates a family owned by the caller.
func (c *Client) CreateFamily(ctx context.Context, name, displayName string) (*model.Family, *model.Membership, error) {
	var resp struct {
		Family     model.Family     `json:"family"`
		Membership model.Membership `json:"membership"`
	}
	err := c.do(ctx, http.MethodPost, "/api/families", map[string]string{
		"name": name, "display_name": displayName,
	}, &resp)
	if err != nil {
		return nil, nil, err
	}
	return &resp.Family, &resp.Membership, nil
}

func (c *Client) Invitations(ctx context.Context) ([]model.Membership, error) {
	var list []model.Membership
	if err := c.do(ctx, http.MethodGet, "/api/invitations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Invite(ctx context.Context, familyID, email string, role model.Role) (*model.Membership, error) {
	var m model.Membership
	err := c.do(ctx, http.MethodPost, familyPath(familyID, "invitations"), map[string]string{
		"email": email, "role": string(role),
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) AcceptInvitation(ctx context.Context, id int64, displayName string) (*model.Membership, error) {
	var m model.Membership
	path := "/api/invitations/" + strconv.FormatInt(id, 10) + "/accept"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"display_name": displayName}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeclineInvitation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/invitations/"+strconv.FormatInt(id, 10)+"/decline", nil, nil)
}

func (c *Client) Members(ctx context.Context, familyID string) ([]model.Membership, error) {
	var list []model.Membership
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "members"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) RemoveMember(ctx context.Context, familyID string, memberID int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "members", strconv.FormatInt(memberID, 10)), nil, nil)
}

// Messages returns the most recent limit messages, oldest first.
func (c *Client) Messages(ctx context.Context, familyID string, limit int) ([]model.Message, error) {
	path := familyPath(familyID, "messages")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var list []model.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Message(ctx context.Context, familyID string, id int64) (*model.Message, error) {
	var m model.Message
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "messages", strconv.FormatInt(id, 10)), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage posts msg. The created row is delivered back on the live
// channel.
func (c *Client) InsertMessage(ctx context.Context, msg backend.NewMessage) error {
	return c.do(ctx, http.MethodPost, familyPath(msg.FamilyID, "messages"), msg, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "messages", strconv.FormatInt(id, 10)), nil, nil)
}

func (c *Client) MarkRead(ctx context.Context, familyID string, messageID int64) error {
	return c.do(ctx, http.MethodPost, familyPath(familyID, "read"), map[string]int64{"message_id": messageID}, nil)
}

// Unread reports how many messages from others are past the caller's read
// marker.
func (c *Client) Unread(ctx context.Context, familyID string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "unread"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// UploadMedia stores data at path, "<family id>/<object name>", and returns
// its URL.
func (c *Client) UploadMedia(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	familyID, name, ok := strings.Cut(path, "/")
	if !ok || familyID == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid media path %q", path)
	}
	var resp struct {
		URL string `json:"url"`
	}
	err := c.send(ctx, http.MethodPut, familyPath(familyID, "media", url.PathEscape(name)), contentType, bytes.NewReader(data), &resp)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) ShoppingList(ctx context.Context, familyID string) ([]model.ShoppingItem, error) {
	var list []model.ShoppingItem
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "shopping"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddShoppingItem adds an item. An empty category lets the server pick one
// from the name.
func (c *Client) AddShoppingItem(ctx context.Context, familyID, name, quantity, category string) (*model.ShoppingItem, error) {
	var it model.ShoppingItem
	err := c.do(ctx, http.MethodPost, familyPath(familyID, "shopping"), map[string]string{
		"name": name, "quantity": quantity, "category": category,
	}, &it)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) ToggleShoppingItem(ctx context.Context, familyID string, id int64) (*model.ShoppingItem, error) {
	var it model.ShoppingItem
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "shopping", strconv.FormatInt(id, 10), "check"), nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) DeleteShoppingItem(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "shopping", strconv.FormatInt(id, 10)), nil, nil)
}

func (c *Client) ClearChecked(ctx context.Context, familyID string) (int64, error) {
	var resp struct {
		Cleared int64 `json:"cleared"`
	}
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "shopping", "clear-checked"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// NewTask is the payload of a task insert.
type NewTask struct {
	Title      string     `json:"title"`
	Notes      string     `json:"notes,omitempty"`
	AssigneeID *int64     `json:"assignee_member_id,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

func (c *Client) Tasks(ctx context.Context, familyID string) ([]model.Task, error) {
	var list []model.Task
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "tasks"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) AddTask(ctx context.Context, familyID string, t NewTask) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "tasks"), t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleTask marks an open task done, or reopens a done one.
func (c *Client) ToggleTask(ctx context.Context, familyID string, id int64) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "tasks", strconv.FormatInt(id, 10), "complete"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTask(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "tasks", strconv.FormatInt(id, 10)), nil, nil)
}

// NewEvent is the payload of a calendar insert or update. A nil EndsAt lasts
// an hour, or the whole day for all-day events.
type NewEvent struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	AllDay      bool       `json:"all_day,omitempty"`
	RRule       string     `json:"rrule,omitempty"`
	MemberID    *int64     `json:"member_id,omitempty"`
}

// Calendar returns the occurrences overlapping [from, to), repeating events
// expanded, in start order.
func (c *Client) Calendar(ctx context.Context, familyID string, from, to time.Time) ([]model.Occurrence, error) {
	q := url.Values{}
	q.Set("from", from.Format(time.RFC3339))
	q.Set("to", to.Format(time.RFC3339))
	var list []model.Occurrence
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "calendar")+"?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CalendarEvent(ctx context.Context, familyID string, id int64) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "calendar", strconv.FormatInt(id, 10)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddEvent(ctx context.Context, familyID string, e NewEvent) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "calendar"), e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEvent replaces every editable field of an event.
func (c *Client) UpdateEvent(ctx context.Context, familyID string, id int64, e NewEvent) (*model.Event, error) {
	var out model.Event
	if err := c.do(ctx, http.MethodPut, familyPath(familyID, "calendar", strconv.FormatInt(id, 10)), e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "calendar", strconv.FormatInt(id, 10)), nil, nil)
}

// NewBill is the payload of a bill insert. FirstDue is a YYYY-MM-DD date.
type NewBill struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	FirstDue    string `json:"first_due"`
	RRule       string `json:"rrule,omitempty"`
	AutoPay     bool   `json:"autopay,omitempty"`
}

func (c *Client) Bills(ctx context.Context, familyID string) ([]model.Bill, error) {
	var list []model.Bill
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "bills"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) AddBill(ctx context.Context, familyID string, b NewBill) (*model.Bill, error) {
	var out model.Bill
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "bills"), b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PayBill settles the bill's next unpaid due date. It fails with ErrConflict
// when nothing is left to pay.
func (c *Client) PayBill(ctx context.Context, familyID string, id int64) (*model.Bill, error) {
	var out model.Bill
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "bills", strconv.FormatInt(id, 10), "pay"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBill(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "bills", strconv.FormatInt(id, 10)), nil, nil)
}

// NewRoutine is the payload of a routine insert. StartsOn is a YYYY-MM-DD
// date and defaults to today on the server.
type NewRoutine struct {
	Title      string `json:"title"`
	Notes      string `json:"notes,omitempty"`
	RRule      string `json:"rrule,omitempty"`
	StartsOn   string `json:"starts_on,omitempty"`
	AssigneeID *int64 `json:"assignee_member_id,omitempty"`
}

func (c *Client) Routines(ctx context.Context, familyID string) ([]model.Routine, error) {
	var list []model.Routine
	if err := c.do(ctx, http.MethodGet, familyPath(familyID, "routines"), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) AddRoutine(ctx context.Context, familyID string, r NewRoutine) (*model.Routine, error) {
	var out model.Routine
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "routines"), r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteRoutine(ctx context.Context, familyID string, id int64) (*model.Routine, error) {
	var out model.Routine
	if err := c.do(ctx, http.MethodPost, familyPath(familyID, "routines", strconv.FormatInt(id, 10), "complete"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRoutine(ctx context.Context, familyID string, id int64) error {
	return c.do(ctx, http.MethodDelete, familyPath(familyID, "routines", strconv.FormatInt(id, 10)), nil, nil)
}
