package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/auth"
	"github.com/pixeluwjal/sanghaforms-sub002/httpx"
	"github.com/pixeluwjal/sanghaforms-sub002/log"
	"github.com/pixeluwjal/sanghaforms-sub002/model"
	"github.com/pixeluwjal/sanghaforms-sub002/routes/middlewares"
)

const inviteTTL = 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "login.validate", err)
			return
		}

		var admin model.Admin
		err := app.QueryRowContext(r.Context(), `
			SELECT id, email, password_hash, role
			FROM admins
			WHERE email = ? AND status = ?`,
			strings.ToLower(req.Email), model.AdminActive,
		).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.Role)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.Unauthenticated(w, r, "login.lookup", err)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_admin", err)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
			httpx.Unauthenticated(w, r, "login.password", nil)
			return
		}

		token, err := app.Issue(auth.Identity{
			AdminID: admin.ID,
			Email:   admin.Email,
			Role:    admin.Role,
		})
		if err != nil {
			httpx.LogInternalError(w, r, "auth.issue", err)
			return
		}

		http.SetCookie(w, sessionCookie(token, int(app.TTL().Seconds())))
		render.JSON(w, r, map[string]any{
			"success": true,
			"admin": map[string]any{
				"id":    admin.ID,
				"email": admin.Email,
				"role":  admin.Role,
			},
		})
	}
}

func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, sessionCookie("", -1))
		render.JSON(w, r, map[string]any{"success": true})
	}
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     "token",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin super_admin"`
}

// InviteAdmin creates a pending admin with a fresh single-use invitation
// token. Re-inviting a pending email regenerates its token and expiry on
// the same row; an active email is rejected.
func InviteAdmin(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, _ := middlewares.IdentityFrom(r.Context())

		req := inviteRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "invite.validate", err)
			return
		}
		email := strings.ToLower(req.Email)

		var existingID, status string
		err := app.QueryRowContext(r.Context(), `
			SELECT id, status FROM admins WHERE email = ?`, email,
		).Scan(&existingID, &status)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, r, "db.get_admin", err)
			return
		}

		if err == nil && status == model.AdminActive {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "invite.duplicate", "an admin with this email already exists")
			return
		}

		token := uuid.NewString()
		expiry := time.Now().Add(inviteTTL)
		now := time.Now()

		if err == nil {
			// pending admin: regenerate the invitation in place
			_, err = app.ExecContext(r.Context(), `
				UPDATE admins
				SET role = ?, invite_token = ?, invite_token_expiry = ?, updated_at = ?
				WHERE id = ?`,
				req.Role, token, expiry, now, existingID,
			)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_invite", err)
				return
			}
		} else {
			_, err = app.ExecContext(r.Context(), `
				INSERT INTO admins (id, email, role, status, invite_token, invite_token_expiry,
					created_by, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), email, req.Role, model.AdminPending, token, expiry,
				requester.AdminID, now, now,
			)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_admin", err)
				return
			}
		}

		// email delivery happens through an external provider; the
		// activation link is logged for operators in the meantime
		log.Infof("invite.issued: %s token=%s", email, token)

		render.JSON(w, r, map[string]any{
			"success": true,
			"message": "invitation sent to " + email,
		})
	}
}

type activateRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// ActivateAccount consumes an invitation token: it must belong to a pending
// admin and be unexpired. Success sets the password hash, flips the account
// active and clears the token so it cannot be replayed.
func ActivateAccount(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := activateRequest{}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			httpx.ValidationFailed(w, r, "activate.validate", err)
			return
		}

		var adminID string
		err := app.QueryRowContext(r.Context(), `
			SELECT id FROM admins
			WHERE invite_token = ?
				AND status = ?
				AND invite_token_expiry > ?`,
			req.Token, model.AdminPending, time.Now(),
		).Scan(&adminID)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "activate.token", "invalid or expired invitation token")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_invite", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, r, "activate.hash", err)
			return
		}

		_, err = app.ExecContext(r.Context(), `
			UPDATE admins
			SET password_hash = ?, status = ?, invite_token = '', invite_token_expiry = NULL, updated_at = ?
			WHERE id = ?`,
			string(hash), model.AdminActive, time.Now(), adminID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.activate_admin", err)
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}

// ListAdmins applies the visibility filter: a super admin sees every
// account, a regular admin only the ones they personally invited.
func ListAdmins(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, _ := middlewares.IdentityFrom(r.Context())

		query := `
			SELECT id, email, role, status, created_by, created_at, updated_at
			FROM admins`
		args := []any{}
		if requester.Role != model.RoleSuperAdmin {
			query += ` WHERE created_by = ?`
			args = append(args, requester.AdminID)
		}
		query += ` ORDER BY created_at`

		rows, err := app.QueryContext(r.Context(), query, args...)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_admins", err)
			return
		}
		defer rows.Close()

		admins := []model.Admin{}
		for rows.Next() {
			a := model.Admin{}
			err = rows.Scan(&a.ID, &a.Email, &a.Role, &a.Status, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_admins.scan", err)
				return
			}
			admins = append(admins, a)
		}

		render.JSON(w, r, map[string]any{
			"success": true,
			"admins":  admins,
		})
	}
}

// DeleteAdmin removes an account. Super admin only; self-deletion is
// rejected regardless of role.
func DeleteAdmin(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, _ := middlewares.IdentityFrom(r.Context())
		targetID := chi.URLParam(r, "id")

		if targetID == requester.AdminID {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "delete_admin.self", "cannot delete your own account")
			return
		}

		res, err := app.ExecContext(r.Context(), `DELETE FROM admins WHERE id = ?`, targetID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_admin", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_admin.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, r, http.StatusNotFound, log.DebugLevel, "delete_admin.missing", "admin not found")
			return
		}

		render.JSON(w, r, map[string]any{"success": true})
	}
}
