package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/application"
	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
	"github.com/go-chi/chi/v5"
)

const sessionCookieName = "st_session"

type contextKey string

const identityKey contextKey = "identity"

type Handler struct {
	service *application.FarmService
}

func NewRouter(service *application.FarmService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", h.handleAPILogin)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/auth/whoami", h.handleAPIWhoAmI)
		api.With(h.requireAuthAPI(application.PermRead)).Post("/auth/logout", h.handleAPILogout)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/plants", h.handleAPIListPlants)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/plants/get", h.handleAPIGetPlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants", h.handleAPICreatePlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/germinate", h.handleAPIGerminate)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/relocate", h.handleAPIRelocatePlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/flip", h.handleAPIFlipPlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/harvest", h.handleAPIHarvestPlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/dry", h.handleAPIDryPlant)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/mark-dried", h.handleAPIMarkPlantDried)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/stage", h.handleAPIChangeStage)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/plants/delete", h.handleAPIDeletePlant)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/harvests", h.handleAPIListHarvests)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/harvests", h.handleAPICreateHarvest)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/inventory/items", h.handleAPIListInventoryItems)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/inventory/items", h.handleAPICreateInventoryItem)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/inventory/items/reduce", h.handleAPIReduceInventoryItem)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/occupancy", h.handleAPIOccupancy)

		api.With(h.requireAuthAPI(application.PermRead)).Get("/access/users", h.handleAPIListUsers)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/access/users", h.handleAPICreateUser)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/access/roles", h.handleAPIListRoles)
		api.With(h.requireAuthAPI(application.PermWrite)).Post("/access/assign-role", h.handleAPIAssignRole)
		api.With(h.requireAuthAPI(application.PermRead)).Get("/audit/logs", h.handleAPIListAuditLogs)
	})

	return r
}

func (h *Handler) requireAuthAPI(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			if !h.service.Can(identity, permission) {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

func actorName(ctx context.Context) string {
	identity, ok := identityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.User.Email
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, 12*time.Hour)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "mode": "session"})
		return
	}

	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "email": u.Email, "token": token, "mode": "token"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": identity.User.ID, "email": identity.User.Email, "permissions": perms})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListPlants(w http.ResponseWriter, r *http.Request) {
	var stage *domain.Stage
	if raw := strings.TrimSpace(r.URL.Query().Get("stage")); raw != "" {
		parsed := domain.Stage(raw)
		if !parsed.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid stage"})
			return
		}
		stage = &parsed
	}
	limit := 200
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	items, err := h.service.ListPlants(r.Context(), stage, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIGetPlant(w http.ResponseWriter, r *http.Request) {
	id, err := parseQueryID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	p, err := h.service.GetPlant(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type apiCreatePlantRequest struct {
	Strain   string `json:"strain"`
	Location string `json:"location"`
}

func (h *Handler) handleAPICreatePlant(w http.ResponseWriter, r *http.Request) {
	var req apiCreatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	p, hash, err := h.service.CreatePlant(r.Context(), req.Strain, req.Location, actorName(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "plants.create", "plant", &p.ID)
	writeJSON(w, http.StatusOK, map[string]any{"plant": p, "event_hash": hash})
}

type apiGerminateRequest struct {
	SeedItemID uint   `json:"seed_item_id"`
	Strain     string `json:"strain"`
	Location   string `json:"location"`
}

func (h *Handler) handleAPIGerminate(w http.ResponseWriter, r *http.Request) {
	var req apiGerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	p, hash, err := h.service.GerminateFromSeed(r.Context(), req.SeedItemID, req.Strain, req.Location, actorName(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "plants.germinate", "plant", &p.ID)
	writeJSON(w, http.StatusOK, map[string]any{"plant": p, "event_hash": hash})
}

type apiRelocatePlantRequest struct {
	PlantID  uint   `json:"plant_id"`
	Location string `json:"location"`
}

func (h *Handler) handleAPIRelocatePlant(w http.ResponseWriter, r *http.Request) {
	var req apiRelocatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	p, err := h.service.RelocatePlant(r.Context(), req.PlantID, req.Location)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "plants.relocate", "plant", &p.ID)
	writeJSON(w, http.StatusOK, p)
}

type apiPlantIDRequest struct {
	PlantID uint `json:"plant_id"`
}

func (h *Handler) handleAPIFlipPlant(w http.ResponseWriter, r *http.Request) {
	h.handlePlantTransition(w, r, "plants.flip", h.service.FlipPlant)
}

func (h *Handler) handleAPIHarvestPlant(w http.ResponseWriter, r *http.Request) {
	h.handlePlantTransition(w, r, "plants.harvest", h.service.HarvestPlant)
}

func (h *Handler) handleAPIDryPlant(w http.ResponseWriter, r *http.Request) {
	h.handlePlantTransition(w, r, "plants.dry", h.service.DryPlant)
}

func (h *Handler) handleAPIMarkPlantDried(w http.ResponseWriter, r *http.Request) {
	h.handlePlantTransition(w, r, "plants.mark_dried", h.service.MarkPlantDried)
}

func (h *Handler) handlePlantTransition(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, uint) (domain.Plant, error)) {
	var req apiPlantIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	p, err := op(r.Context(), req.PlantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), action, "plant", &p.ID)
	writeJSON(w, http.StatusOK, p)
}

type apiChangeStageRequest struct {
	PlantID uint   `json:"plant_id"`
	Stage   string `json:"stage"`
}

func (h *Handler) handleAPIChangeStage(w http.ResponseWriter, r *http.Request) {
	var req apiChangeStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	p, err := h.service.ChangePlantStage(r.Context(), req.PlantID, domain.Stage(strings.TrimSpace(req.Stage)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "plants.stage", "plant", &p.ID)
	writeJSON(w, http.StatusOK, p)
}

type apiDeletePlantRequest struct {
	PlantID uint   `json:"plant_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleAPIDeletePlant(w http.ResponseWriter, r *http.Request) {
	var req apiDeletePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	record, err := h.service.DeletePlant(r.Context(), req.PlantID, req.Reason, actorName(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleAPIListHarvests(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListHarvests(r.Context(), 200)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateHarvestRequest struct {
	PlantID    uint    `json:"plant_id"`
	YieldGrams float64 `json:"yield_grams"`
	Status     string  `json:"status"`
}

func (h *Handler) handleAPICreateHarvest(w http.ResponseWriter, r *http.Request) {
	var req apiCreateHarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	harvest, hash, err := h.service.CreateHarvest(r.Context(), req.PlantID, req.YieldGrams, req.Status, actorName(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "harvests.create", "harvest", &harvest.ID)
	writeJSON(w, http.StatusOK, map[string]any{"harvest": harvest, "event_hash": hash})
}

func (h *Handler) handleAPIListInventoryItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListInventoryItems(r.Context(), r.URL.Query().Get("q"), 200)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateInventoryItemRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

func (h *Handler) handleAPICreateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req apiCreateInventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	item, err := h.service.CreateInventoryItem(r.Context(), req.Name, req.Category, req.Quantity, req.Unit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "inventory.item.create", "inventory_item", &item.ID)
	writeJSON(w, http.StatusOK, item)
}

type apiReduceInventoryRequest struct {
	ItemID uint `json:"item_id"`
	Amount int  `json:"amount"`
}

func (h *Handler) handleAPIReduceInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req apiReduceInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	item, err := h.service.ReduceQuantity(r.Context(), req.ItemID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeAudit(r.Context(), "inventory.item.reduce", "inventory_item", &item.ID)
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleAPIOccupancy(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.Occupancy(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) handleAPIListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("q"), 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   uint   `json:"role_id"`
}

func (h *Handler) handleAPICreateUser(w http.ResponseWriter, r *http.Request) {
	var req apiCreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.CreateUser(r.Context(), req.Email, req.Password, req.RoleID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	h.writeAudit(r.Context(), "access.user.create", "user", &v.ID)
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleAPIListRoles(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRoles(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiAssignRoleRequest struct {
	UserID uint `json:"user_id"`
	RoleID uint `json:"role_id"`
}

func (h *Handler) handleAPIAssignRole(w http.ResponseWriter, r *http.Request) {
	var req apiAssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if err := h.service.AssignRole(r.Context(), req.UserID, req.RoleID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	h.writeAudit(r.Context(), "access.role.assign", "user", &req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListAuditLogs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAuditLogs(r.Context(), 500)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func parseQueryID(r *http.Request) (uint, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		return 0, errors.New("id is required")
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("id must be an integer")
	}
	return uint(parsed), nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInsufficientQuantity):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeAudit(ctx context.Context, action, targetType string, targetID *uint) {
	identity, ok := identityFromContext(ctx)
	if !ok {
		h.service.WriteAudit(ctx, nil, action, targetType, targetID, "")
		return
	}
	h.service.WriteAudit(ctx, &identity.User.ID, action, targetType, targetID, "")
}
