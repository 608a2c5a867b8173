package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultRestTimeout = 10 * time.Second

// Rest is the live Client implementation. It speaks the platform's HTTP API
// with bot-token auth and throttles outbound calls with a shared limiter so a
// sweep burst cannot trip the platform's rate limits.
type Rest struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Client = (*Rest)(nil)

// RestConfig configures the live platform client.
type RestConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

func NewRest(cfg RestConfig, logger *zap.Logger) *Rest {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRestTimeout
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 25
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Rest{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("platform: api status %d: %s", e.Status, e.Message)
}

func (r *Rest) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		r.logger.Warn("Platform API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &apiError{Status: resp.StatusCode, Message: apiErr.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("platform: decode response: %w", err)
		}
	}
	return nil
}

type wireGrant struct {
	SubjectID string   `json:"subject_id"`
	Allow     []string `json:"allow"`
	Deny      []string `json:"deny"`
}

func encodeGrant(g Grant) wireGrant {
	wg := wireGrant{SubjectID: g.SubjectID, Allow: []string{}, Deny: []string{}}
	for _, p := range g.Allow {
		wg.Allow = append(wg.Allow, string(p))
	}
	for _, p := range g.Deny {
		wg.Deny = append(wg.Deny, string(p))
	}
	return wg
}

type wireMessage struct {
	Title   string       `json:"title,omitempty"`
	Body    string       `json:"body,omitempty"`
	Color   int          `json:"color,omitempty"`
	Fields  []wireField  `json:"fields,omitempty"`
	Buttons []wireButton `json:"buttons,omitempty"`
}

type wireField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type wireButton struct {
	ActionID string `json:"action_id"`
	Label    string `json:"label"`
	Style    string `json:"style,omitempty"`
}

func encodeMessage(spec MessageSpec) wireMessage {
	msg := wireMessage{Title: spec.Title, Body: spec.Body, Color: spec.Color}
	for _, f := range spec.Fields {
		msg.Fields = append(msg.Fields, wireField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	for _, b := range spec.Buttons {
		msg.Buttons = append(msg.Buttons, wireButton{ActionID: b.ActionID, Label: b.Label, Style: b.Style})
	}
	return msg
}

func (r *Rest) CreateRoom(ctx context.Context, p CreateRoomParams) (string, error) {
	grants := make([]wireGrant, 0, len(p.Grants))
	for _, g := range p.Grants {
		grants = append(grants, encodeGrant(g))
	}
	body := struct {
		Name      string      `json:"name"`
		ParentID  string      `json:"parent_id"`
		UserLimit int         `json:"user_limit,omitempty"`
		Grants    []wireGrant `json:"grants,omitempty"`
	}{p.Name, p.ParentID, p.UserLimit, grants}

	var out struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, "/rooms", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (r *Rest) DeleteRoom(ctx context.Context, roomID, reason string) error {
	path := "/rooms/" + url.PathEscape(roomID)
	if reason != "" {
		path += "?reason=" + url.QueryEscape(reason)
	}
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

func (r *Rest) RenameRoom(ctx context.Context, roomID, name string) error {
	body := struct {
		Name string `json:"name"`
	}{name}
	return r.do(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(roomID), body, nil)
}

func (r *Rest) SetRoomLimit(ctx context.Context, roomID string, limit int) error {
	body := struct {
		UserLimit int `json:"user_limit"`
	}{limit}
	return r.do(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(roomID), body, nil)
}

func (r *Rest) EditPermission(ctx context.Context, roomID string, grant Grant) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/permissions/" + url.PathEscape(grant.SubjectID)
	if len(grant.Allow) == 0 && len(grant.Deny) == 0 {
		return r.do(ctx, http.MethodDelete, path, nil, nil)
	}
	return r.do(ctx, http.MethodPut, path, encodeGrant(grant), nil)
}

func (r *Rest) RoomOccupants(ctx context.Context, roomID string) ([]string, error) {
	var out struct {
		Occupants []string `json:"occupants"`
	}
	if err := r.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/occupants", nil, &out); err != nil {
		return nil, err
	}
	return out.Occupants, nil
}

func (r *Rest) RoomsInCategory(ctx context.Context, categoryID string) ([]string, error) {
	var out struct {
		Rooms []string `json:"rooms"`
	}
	if err := r.do(ctx, http.MethodGet, "/categories/"+url.PathEscape(categoryID)+"/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (r *Rest) MoveMember(ctx context.Context, identityID, roomID string) error {
	body := struct {
		RoomID string `json:"room_id"`
	}{roomID}
	return r.do(ctx, http.MethodPatch, "/members/"+url.PathEscape(identityID), body, nil)
}

func (r *Rest) DisconnectMember(ctx context.Context, identityID, reason string) error {
	body := struct {
		Reason string `json:"reason,omitempty"`
	}{reason}
	return r.do(ctx, http.MethodPost, "/members/"+url.PathEscape(identityID)+"/disconnect", body, nil)
}

type wireMember struct {
	RoomID string `json:"room_id"`
	Label  string `json:"label"`
}

func (r *Rest) member(ctx context.Context, identityID string) (*wireMember, error) {
	var out wireMember
	if err := r.do(ctx, http.MethodGet, "/members/"+url.PathEscape(identityID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Rest) MemberRoom(ctx context.Context, identityID string) (string, error) {
	m, err := r.member(ctx, identityID)
	if err != nil {
		return "", err
	}
	if m.RoomID == "" {
		return "", ErrNotFound
	}
	return m.RoomID, nil
}

func (r *Rest) MemberLabel(ctx context.Context, identityID string) (string, error) {
	m, err := r.member(ctx, identityID)
	if err != nil {
		return "", err
	}
	return m.Label, nil
}

func (r *Rest) SetMemberLabel(ctx context.Context, identityID, label string) error {
	body := struct {
		Label string `json:"label"`
	}{label}
	return r.do(ctx, http.MethodPatch, "/members/"+url.PathEscape(identityID), body, nil)
}

func (r *Rest) MemberHasRole(ctx context.Context, identityID, roleID string) (bool, error) {
	path := "/members/" + url.PathEscape(identityID) + "/roles/" + url.PathEscape(roleID)
	err := r.do(ctx, http.MethodGet, path, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Rest) AssignRole(ctx context.Context, identityID, roleID string) error {
	path := "/members/" + url.PathEscape(identityID) + "/roles/" + url.PathEscape(roleID)
	return r.do(ctx, http.MethodPut, path, nil, nil)
}

func (r *Rest) RevokeRole(ctx context.Context, identityID, roleID string) error {
	path := "/members/" + url.PathEscape(identityID) + "/roles/" + url.PathEscape(roleID)
	err := r.do(ctx, http.MethodDelete, path, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (r *Rest) SendMessage(ctx context.Context, channelID string, spec MessageSpec) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := r.do(ctx, http.MethodPost, path, encodeMessage(spec), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (r *Rest) EditMessage(ctx context.Context, channelID, messageID string, spec MessageSpec) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return r.do(ctx, http.MethodPatch, path, encodeMessage(spec), nil)
}

func (r *Rest) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

func (r *Rest) RespondInteraction(ctx context.Context, interactionID, content string) error {
	body := struct {
		Content string `json:"content,omitempty"`
	}{content}
	return r.do(ctx, http.MethodPost, "/interactions/"+url.PathEscape(interactionID)+"/respond", body, nil)
}
