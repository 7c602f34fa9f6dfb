package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/seedtrace/internal/application"
	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

type Server struct {
	service  *application.FarmService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  any         `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.FarmService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		identity, rpcResp, ok := s.authz(ctx, req, "")
		if !ok {
			return rpcResp
		}
		return response{JSONRPC: "2.0", Result: map[string]any{"id": identity.User.ID, "email": identity.User.Email}, ID: req.ID}
	case "plants.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			Strain   string `json:"strain"`
			Location string `json:"location"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		plant, hash, err := s.service.CreatePlant(ctx, p.Strain, p.Location, identity.User.Email)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "plants.create", "plant", &plant.ID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"plant": plant, "event_hash": hash}, ID: req.ID}
	case "plants.germinate":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string `json:"token"`
			SeedItemID uint   `json:"seed_item_id"`
			Strain     string `json:"strain"`
			Location   string `json:"location"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		plant, hash, err := s.service.GerminateFromSeed(ctx, p.SeedItemID, p.Strain, p.Location, identity.User.Email)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "plants.germinate", "plant", &plant.ID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"plant": plant, "event_hash": hash}, ID: req.ID}
	case "plants.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Stage string `json:"stage"`
			Q     string `json:"q"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		var stage *domain.Stage
		if strings.TrimSpace(p.Stage) != "" {
			parsed := domain.Stage(strings.TrimSpace(p.Stage))
			if !parsed.Valid() {
				return appError(req.ID, errors.New("invalid stage"))
			}
			stage = &parsed
		}
		out, err := s.service.ListPlants(ctx, stage, p.Q, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "plants.get":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			PlantID uint   `json:"plant_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetPlant(ctx, p.PlantID)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "plants.relocate":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			PlantID  uint   `json:"plant_id"`
			Location string `json:"location"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.RelocatePlant(ctx, p.PlantID, p.Location)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "plants.relocate", "plant", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "plants.flip":
		return s.handlePlantTransition(ctx, req, "plants.flip", s.service.FlipPlant)
	case "plants.harvest":
		return s.handlePlantTransition(ctx, req, "plants.harvest", s.service.HarvestPlant)
	case "plants.dry":
		return s.handlePlantTransition(ctx, req, "plants.dry", s.service.DryPlant)
	case "plants.mark_dried":
		return s.handlePlantTransition(ctx, req, "plants.mark_dried", s.service.MarkPlantDried)
	case "plants.stage":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			PlantID uint   `json:"plant_id"`
			Stage   string `json:"stage"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ChangePlantStage(ctx, p.PlantID, domain.Stage(strings.TrimSpace(p.Stage)))
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "plants.stage", "plant", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "plants.delete":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token   string `json:"token"`
			PlantID uint   `json:"plant_id"`
			Reason  string `json:"reason"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.DeletePlant(ctx, p.PlantID, p.Reason, identity.User.Email)
		if err != nil {
			return appError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "harvests.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token      string  `json:"token"`
			PlantID    uint    `json:"plant_id"`
			YieldGrams float64 `json:"yield_grams"`
			Status     string  `json:"status"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		harvest, hash, err := s.service.CreateHarvest(ctx, p.PlantID, p.YieldGrams, p.Status, identity.User.Email)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "harvests.create", "harvest", &harvest.ID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"harvest": harvest, "event_hash": hash}, ID: req.ID}
	case "harvests.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListHarvests(ctx, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "inventory.item.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			Name     string `json:"name"`
			Category string `json:"category"`
			Quantity int    `json:"quantity"`
			Unit     string `json:"unit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateInventoryItem(ctx, p.Name, p.Category, p.Quantity, p.Unit)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "inventory.item.create", "inventory_item", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "inventory.item.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Q     string `json:"q"`
			Limit int    `json:"limit"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListInventoryItems(ctx, p.Q, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "inventory.item.reduce":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token  string `json:"token"`
			ItemID uint   `json:"item_id"`
			Amount int    `json:"amount"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ReduceQuantity(ctx, p.ItemID, p.Amount)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "inventory.item.reduce", "inventory_item", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "occupancy.report":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.Occupancy(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "access.user.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Q     string `json:"q"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListUsers(ctx, p.Q, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "access.user.create":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token    string `json:"token"`
			Email    string `json:"email"`
			Password string `json:"password"`
			RoleID   uint   `json:"role_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateUser(ctx, p.Email, p.Password, p.RoleID)
		if err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "access.user.create", "user", &out.ID, "rpc")
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "access.role.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListRoles(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	case "access.role.assign":
		identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token  string `json:"token"`
			UserID uint   `json:"user_id"`
			RoleID uint   `json:"role_id"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if err := s.service.AssignRole(ctx, p.UserID, p.RoleID); err != nil {
			return appError(req.ID, err)
		}
		s.service.WriteAudit(ctx, &identity.User.ID, "access.role.assign", "user", &p.UserID, "rpc")
		return response{JSONRPC: "2.0", Result: map[string]any{"ok": true}, ID: req.ID}
	case "audit.list":
		_, rpcResp, ok := s.authz(ctx, req, application.PermRead)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAuditLogs(ctx, 500)
		if err != nil {
			return internalError(req.ID, err)
		}
		return response{JSONRPC: "2.0", Result: out, ID: req.ID}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handlePlantTransition(ctx context.Context, req request, action string, op func(context.Context, uint) (domain.Plant, error)) response {
	identity, rpcResp, ok := s.authz(ctx, req, application.PermWrite)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token   string `json:"token"`
		PlantID uint   `json:"plant_id"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	out, err := op(ctx, p.PlantID)
	if err != nil {
		return appError(req.ID, err)
	}
	s.service.WriteAudit(ctx, &identity.User.ID, action, "plant", &out.ID, "rpc")
	return response{JSONRPC: "2.0", Result: out, ID: req.ID}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	u, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
	}
	return response{JSONRPC: "2.0", Result: map[string]any{"user_id": u.ID, "email": u.Email, "token": token}, ID: req.ID}
}

func (s *Server) authz(ctx context.Context, req request, permission string) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	if permission != "" && !s.service.Can(identity, permission) {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40300, Message: "forbidden"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func appError(id any, err error) response {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40400, Message: err.Error()}, ID: id}
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrInsufficientQuantity):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40900, Message: err.Error()}, ID: id}
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
	}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
