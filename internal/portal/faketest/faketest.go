// Package faketest provides a deterministic portal.Client double for
// handler tests, scripted per call instead of talking to a real portal.
package faketest

import (
	"context"

	"github.com/schoolbot/lockbox/internal/portal"
)

// Client is a scripted, in-memory portal.Client.
type Client struct {
	// Accounts maps "login:password" to the session it should produce.
	// A missing entry causes Login to return portal.ErrInvalidCredentials.
	Accounts map[string]*Session
	// Unreachable, if set, makes Login return portal.ErrUnreachable
	// regardless of Accounts.
	Unreachable bool
}

func New() *Client {
	return &Client{Accounts: make(map[string]*Session)}
}

// WithAccount registers a scripted successful login.
func (c *Client) WithAccount(login, password string, session *Session) *Client {
	c.Accounts[login+":"+password] = session
	return c
}

func (c *Client) Login(ctx context.Context, login, password string) (portal.Session, error) {
	if c.Unreachable {
		return nil, portal.ErrUnreachable
	}
	session, ok := c.Accounts[login+":"+password]
	if !ok {
		return nil, portal.ErrInvalidCredentials
	}
	return session, nil
}

// Session is a scripted portal.Session.
type Session struct {
	SchoolsList    []portal.School
	DayCycle       string
	TimetableItems []portal.TimetableItem
	UserIdentity   portal.Identity
}

func (s *Session) Schools(ctx context.Context, schoolCode int) ([]portal.School, error) {
	if schoolCode == 0 {
		return s.SchoolsList, nil
	}
	var filtered []portal.School
	for _, sc := range s.SchoolsList {
		if sc.Code == schoolCode {
			filtered = append(filtered, sc)
		}
	}
	return filtered, nil
}

func (s *Session) DayCycleName(ctx context.Context, schoolID string) (string, error) {
	return s.DayCycle, nil
}

func (s *Session) Timetable(ctx context.Context, schoolID string) ([]portal.TimetableItem, error) {
	return s.TimetableItems, nil
}

func (s *Session) Identity(ctx context.Context) (portal.Identity, error) {
	return s.UserIdentity, nil
}
