package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"admin-auth/internal/auth"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/session"
	"admin-auth/internal/util"
	"admin-auth/internal/wallet"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler exposes the admin auth facade over HTTP, plus the wallet and
// role-selection inputs for deployments where those arrive as events from
// the frontend.
type AdminHandler struct {
	facade *auth.Facade
	wallet *wallet.Wallet
	roles  *session.RoleSelection
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(facade *auth.Facade, w *wallet.Wallet, roles *session.RoleSelection, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{facade: facade, wallet: w, roles: roles, logger: logger}
}

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RegisterRoutes registers all admin session routes.
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Post("/wallet", h.UpdateWallet)
		r.Post("/role", h.SelectRole)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/refresh", h.Refresh)
		r.Get("/session", h.GetSession)
		r.Get("/permissions", h.GetPermissions)
	})
}

type walletRequest struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
}

// UpdateWallet applies a wallet connection change.
func (h *AdminHandler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	if req.Connected {
		if req.Address == "" {
			writeJSON(w, http.StatusBadRequest, Response{Error: "address is required when connected"})
			return
		}
		if !util.LooksLikeAddress(req.Address) {
			h.logger.Warn("Wallet address has unexpected shape",
				zap.String("address", util.NormalizeAddress(req.Address)))
		}
		h.wallet.Connect(req.Address)
	} else {
		h.wallet.Disconnect()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.sessionView()})
}

type roleRequest struct {
	Role string `json:"role"`
}

// SelectRole applies a role-selection change.
func (h *AdminHandler) SelectRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}
	h.roles.Select(rbac.ParseRole(req.Role))
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.sessionView()})
}

type loginRequest struct {
	Role        string `json:"role"`
	Credentials string `json:"credentials"`
}

// Login authenticates the connected wallet for the requested role.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	role := rbac.ParseRole(req.Role)
	if err := h.facade.Login(r.Context(), role, req.Credentials); err != nil {
		writeJSON(w, loginErrorStatus(err), Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.sessionView()})
}

// Logout clears the admin session.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.Logout(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true})
}

// Refresh updates the session's last-active timestamp.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.RefreshAdminData(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.sessionView()})
}

// GetSession returns the current admin snapshot and derived role booleans.
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.sessionView()})
}

// GetPermissions lists the current admin's permissions.
func (h *AdminHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	admin := h.facade.CurrentAdmin()
	perms := []string{}
	if admin != nil {
		perms = admin.Permissions.List()
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]interface{}{
		"permissions": perms,
	}})
}

type sessionView struct {
	Admin           *identity.AdminUser `json:"admin"`
	IsAdmin         bool                `json:"is_admin"`
	IsCreatorAdmin  bool                `json:"is_creator_admin"`
	IsPlatformAdmin bool                `json:"is_platform_admin"`
	IsOwner         bool                `json:"is_owner"`
	Loading         bool                `json:"loading"`
}

func (h *AdminHandler) sessionView() sessionView {
	return sessionView{
		Admin:           h.facade.CurrentAdmin(),
		IsAdmin:         h.facade.IsAdmin(),
		IsCreatorAdmin:  h.facade.IsCreatorAdmin(),
		IsPlatformAdmin: h.facade.IsPlatformAdmin(),
		IsOwner:         h.facade.IsOwner(),
		Loading:         h.facade.Loading(),
	}
}

func loginErrorStatus(err error) int {
	var authFailed *identity.AuthenticationFailedError
	var notPermitted *identity.RoleNotPermittedError
	switch {
	case errors.Is(err, identity.ErrWalletNotConnected),
		errors.Is(err, identity.ErrCredentialsRequired):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrLoginSuperseded):
		return http.StatusConflict
	case errors.As(err, &notPermitted):
		return http.StatusForbidden
	case errors.As(err, &authFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		util.Error("Failed to encode response", zap.Error(err))
	}
}
