package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}

type plantEventResult struct {
	Plant     domain.Plant `json:"plant"`
	EventHash string       `json:"event_hash"`
}

type harvestEventResult struct {
	Harvest   domain.Harvest `json:"harvest"`
	EventHash string         `json:"event_hash"`
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"email":      email,
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":      email,
		"password":   password,
		"mode":       "token",
		"token_name": tokenName,
	}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.whoami", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		return nil
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doPlantsCreate(ctx context.Context, cfg cliConfig, strain, location string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.create", map[string]any{
			"token":    cfg.Token,
			"strain":   strain,
			"location": location,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/plants", map[string]any{
		"strain":   strain,
		"location": location,
	}, out)
}

func doPlantsGerminate(ctx context.Context, cfg cliConfig, seedItemID uint, strain, location string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.germinate", map[string]any{
			"token":        cfg.Token,
			"seed_item_id": seedItemID,
			"strain":       strain,
			"location":     location,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/plants/germinate", map[string]any{
		"seed_item_id": seedItemID,
		"strain":       strain,
		"location":     location,
	}, out)
}

func doPlantsList(ctx context.Context, cfg cliConfig, stage, q string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.list", map[string]any{"token": cfg.Token, "stage": stage, "q": q, "limit": 200}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	params := url.Values{}
	if stage != "" {
		params.Set("stage", stage)
	}
	if q != "" {
		params.Set("q", q)
	}
	path := "/api/plants"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doPlantsGet(ctx context.Context, cfg cliConfig, id uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.get", map[string]any{"token": cfg.Token, "plant_id": id}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/plants/get?id="+uintToString(id), nil, out)
}

func doPlantsRelocate(ctx context.Context, cfg cliConfig, id uint, location string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.relocate", map[string]any{
			"token":    cfg.Token,
			"plant_id": id,
			"location": location,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/plants/relocate", map[string]any{
		"plant_id": id,
		"location": location,
	}, out)
}

func doPlantTransition(ctx context.Context, cfg cliConfig, rpcMethod, httpPath string, id uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, rpcMethod, map[string]any{"token": cfg.Token, "plant_id": id}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, httpPath, map[string]any{"plant_id": id}, out)
}

func doPlantsStage(ctx context.Context, cfg cliConfig, id uint, stage string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.stage", map[string]any{
			"token":    cfg.Token,
			"plant_id": id,
			"stage":    stage,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/plants/stage", map[string]any{
		"plant_id": id,
		"stage":    stage,
	}, out)
}

func doPlantsDelete(ctx context.Context, cfg cliConfig, id uint, reason string, out any) error {
	if reason == "" {
		return fmt.Errorf("reason is required")
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "plants.delete", map[string]any{
			"token":    cfg.Token,
			"plant_id": id,
			"reason":   reason,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/plants/delete", map[string]any{
		"plant_id": id,
		"reason":   reason,
	}, out)
}

func doHarvestsCreate(ctx context.Context, cfg cliConfig, plantID uint, yieldGrams float64, status string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "harvests.create", map[string]any{
			"token":       cfg.Token,
			"plant_id":    plantID,
			"yield_grams": yieldGrams,
			"status":      status,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/harvests", map[string]any{
		"plant_id":    plantID,
		"yield_grams": yieldGrams,
		"status":      status,
	}, out)
}

func doHarvestsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "harvests.list", map[string]any{"token": cfg.Token, "limit": 200}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/harvests", nil, out)
}

func doInventoryList(ctx context.Context, cfg cliConfig, q string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "inventory.item.list", map[string]any{"token": cfg.Token, "q": q, "limit": 200}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/inventory/items"
	if q != "" {
		path += "?q=" + url.QueryEscape(q)
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doInventoryCreate(ctx context.Context, cfg cliConfig, name, category string, quantity int, unit string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "inventory.item.create", map[string]any{
			"token":    cfg.Token,
			"name":     name,
			"category": category,
			"quantity": quantity,
			"unit":     unit,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/inventory/items", map[string]any{
		"name":     name,
		"category": category,
		"quantity": quantity,
		"unit":     unit,
	}, out)
}

func doInventoryReduce(ctx context.Context, cfg cliConfig, itemID uint, amount int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "inventory.item.reduce", map[string]any{
			"token":   cfg.Token,
			"item_id": itemID,
			"amount":  amount,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/inventory/items/reduce", map[string]any{
		"item_id": itemID,
		"amount":  amount,
	}, out)
}

func doOccupancy(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "occupancy.report", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/occupancy", nil, out)
}

func doUsersList(ctx context.Context, cfg cliConfig, q string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "access.user.list", map[string]any{"token": cfg.Token, "q": q}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/access/users"
	if q != "" {
		path += "?q=" + url.QueryEscape(q)
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doUsersCreate(ctx context.Context, cfg cliConfig, email, password string, roleID uint, out any) error {
	body := map[string]any{"email": email, "password": password}
	if roleID != 0 {
		body["role_id"] = roleID
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		body["token"] = cfg.Token
		return client.call(ctx, "access.user.create", body, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/access/users", body, out)
}

func doRolesList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "access.role.list", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/access/roles", nil, out)
}

func doAssignRole(ctx context.Context, cfg cliConfig, userID, roleID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "access.role.assign", map[string]any{
			"token":   cfg.Token,
			"user_id": userID,
			"role_id": roleID,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/access/assign-role", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	}, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "audit.list", map[string]any{"token": cfg.Token, "limit": 200}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/audit/logs", nil, out)
}
