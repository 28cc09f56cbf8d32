package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/handlers"
	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
)

type createUserRequest struct {
	Login     string `json:"login,omitempty"`
	Password  string `json:"password,omitempty"`
	Active    *bool  `json:"active,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Grade     *int   `json:"grade,omitempty"`
}

// CreateUser handles POST /user.
func (d *Deps) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("malformed json body"))
		return
	}

	token, err := newToken()
	if err != nil {
		writeError(w, errInternal("mint token"))
		return
	}

	u := &model.User{
		Token:  token,
		Active: req.Active == nil || *req.Active,
		CachedIdentity: model.Identity{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Grade:     req.Grade,
		},
	}
	if req.Login != "" {
		u.Login = &req.Login
	}
	if req.Password != "" {
		enc, err := d.Vault.Encrypt(req.Password)
		if err != nil {
			writeError(w, errInternal("encrypt password"))
			return
		}
		u.EncryptedPassword = &enc
	}

	if err := d.Store.Users.Create(r.Context(), u); err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

type patchUserRequest struct {
	Login     *string `json:"login,omitempty"`
	Password  *string `json:"password,omitempty"`
	Active    *bool   `json:"active,omitempty"`
	Grade     *int    `json:"grade,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// PatchUser handles PATCH /user.
func (d *Deps) PatchUser(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	var req patchUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest("malformed json body"))
		return
	}

	identity := u.CachedIdentity
	if req.FirstName != nil {
		identity.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		identity.LastName = *req.LastName
	}
	if req.Grade != nil {
		identity.Grade = req.Grade
	}

	credentialsChanged := req.Login != nil || req.Password != nil

	var encryptedPassword *string
	login := req.Login
	if req.Password != nil {
		enc, err := d.Vault.Encrypt(*req.Password)
		if err != nil {
			writeError(w, errInternal("encrypt password"))
			return
		}
		encryptedPassword = &enc
	}

	if credentialsChanged {
		effectiveLogin := u.Login
		if login != nil {
			effectiveLogin = login
		}
		effectivePassword := ""
		if encryptedPassword != nil {
			dec, err := d.Vault.Decrypt(*encryptedPassword)
			if err != nil {
				writeError(w, errInternal("decrypt password"))
				return
			}
			effectivePassword = dec
		} else if u.EncryptedPassword != nil {
			dec, err := d.Vault.Decrypt(*u.EncryptedPassword)
			if err != nil {
				writeError(w, errInternal("decrypt password"))
				return
			}
			effectivePassword = dec
		}

		if effectiveLogin == nil || *effectiveLogin == "" || effectivePassword == "" {
			writeError(w, errConflict("login and password are both required to verify credentials"))
			return
		}

		session, err := d.Portal.Login(r.Context(), *effectiveLogin, effectivePassword)
		if err != nil {
			if errors.Is(err, portal.ErrInvalidCredentials) {
				writeError(w, errBadRequest("Incorrect TDSB credentials"))
				return
			}
			writeError(w, errConflict("portal rejected credentials: "+err.Error()))
			return
		}
		if portalIdentity, err := session.Identity(r.Context()); err == nil {
			if portalIdentity.Email != "" {
				identity.Email = portalIdentity.Email
			}
		}
	}

	if err := d.Store.Users.UpdateIdentityAndCredentials(r.Context(), u.Token, login, encryptedPassword, req.Active, identity); err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}
	invalidateUser(r.Context(), d.Tokens, u.Token)

	if credentialsChanged {
		if err := d.Sched.Insert(r.Context(), handlers.PopulateCoursesArgs{UserToken: u.Token}, nil); err != nil {
			d.Logger.ErrorContext(r.Context(), "patch user: enqueue populate-courses failed", "error", err)
		}
	}

	active := u.Active
	if req.Active != nil {
		active = *req.Active
	}
	hasLogin := login != nil || u.Login != nil
	hasPassword := encryptedPassword != nil || u.EncryptedPassword != nil
	if active && hasLogin && hasPassword {
		if err := d.ensureFillFormScheduled(r.Context(), u.Token); err != nil {
			d.Logger.ErrorContext(r.Context(), "patch user: ensure fill-form failed", "error", err)
		}
	}

	writeNoContent(w)
}

// ensureFillFormScheduled enqueues a fill-form task within the next
// fill-form window, pulled back a day if today's window has not yet
// passed - PATCH /user's "ensure a fill-form task exists" behavior.
func (d *Deps) ensureFillFormScheduled(ctx context.Context, token string) error {
	runAt, err := handlers.NextFillFormWindow(d.Config.FillFormRunTime)
	if err != nil {
		return err
	}
	return d.Sched.Insert(ctx, handlers.FillFormArgs{UserToken: token}, &river.InsertOpts{ScheduledAt: runAt.UTC()})
}

type userResponse struct {
	Login          *string               `json:"login,omitempty"`
	CredentialsSet bool                  `json:"credentials_set"`
	CachedIdentity model.Identity        `json:"cached_identity"`
	Active         bool                  `json:"active"`
	CourseIDs      *[]string             `json:"course_ids"`
	FailureEvents  []model.FailureEvent  `json:"failure_events"`
	LastFillResult *model.FillFormResult `json:"last_fill_result,omitempty"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Login:          u.Login,
		CredentialsSet: u.CredentialsSet(),
		CachedIdentity: u.CachedIdentity,
		Active:         u.Active,
		CourseIDs:      u.CourseIDs,
		FailureEvents:  u.FailureEvents,
		LastFillResult: u.LastFillResult,
	}
}

// GetUser handles GET /user.
func (d *Deps) GetUser(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeleteUser handles DELETE /user, also releasing the user's last-result
// screenshots.
func (d *Deps) DeleteUser(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())

	if u.LastFillResult != nil {
		noOtherUserUsesIt := func(ctx context.Context, key string) (bool, error) { return false, nil }
		if err := d.Blob.ReleaseResultScreenshots(r.Context(), u.LastFillResult.FormScreenshotID, u.LastFillResult.ConfirmScreenshotID, noOtherUserUsesIt); err != nil {
			d.Logger.ErrorContext(r.Context(), "delete user: release screenshots failed", "error", err)
		}
	}

	if err := d.Store.Users.Delete(r.Context(), u.Token); err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}
	invalidateUser(r.Context(), d.Tokens, u.Token)
	writeNoContent(w)
}

// DeleteUserError handles DELETE /user/error/{id}.
func (d *Deps) DeleteUserError(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	eventID := chi.URLParam(r, "id")

	if err := d.Store.Users.PullFailureEvent(r.Context(), u.Token, eventID); err != nil {
		writeError(w, classifyStoreErr(err))
		return
	}
	invalidateUser(r.Context(), d.Tokens, u.Token)
	writeNoContent(w)
}
