package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/seedtrace/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/seedtrace/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/seedtrace/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/seedtrace/internal/application"
	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "seedtrace",
		Usage: "Cultivation tracking server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			plantsCommand(),
			harvestsCommand(),
			inventoryCommand(),
			occupancyCommand(),
			accessCommand(),
			auditCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/seedtrace.sock", "seedtrace.db", "admin@seedtrace.local", "admin")
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/seedtrace.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "seedtrace.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Value: "admin@seedtrace.local", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Value: "admin", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"), c.String("bootstrap-admin-email"), c.String("bootstrap-admin-password"))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath, bootstrapEmail, bootstrapPassword string) error {
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewFarmRepository(db)
	service := application.NewFarmService(repo, nil)
	if err := service.BootstrapAdmin(ctx, bootstrapEmail, bootstrapPassword); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Info().Str("socket", rpcSocket).Msg("json-rpc listening")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/seedtrace.sock"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out)
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						ID    uint   `json:"id"`
						Email string `json:"email"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", uintToString(out.ID)}, {"email", out.Email}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func plantsCommand() *cli.Command {
	return &cli.Command{
		Name:  "plants",
		Usage: "Plant lifecycle commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Register a new plant at the seed stage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "strain", Required: true},
					&cli.StringFlag{Name: "location"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out plantEventResult
					if err := doPlantsCreate(ctx, cfg, c.String("strain"), c.String("location"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlantEvent(out)
					return nil
				},
			},
			{
				Name:  "germinate",
				Usage: "Start a plant from seed stock, consuming one seed",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "seed-item-id", Required: true},
					&cli.StringFlag{Name: "strain", Required: true},
					&cli.StringFlag{Name: "location"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out plantEventResult
					if err := doPlantsGerminate(ctx, cfg, uint(c.Uint("seed-item-id")), c.String("strain"), c.String("location"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlantEvent(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List plants",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stage"},
					&cli.StringFlag{Name: "q"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Plant
					if err := doPlantsList(ctx, cfg, c.String("stage"), c.String("q"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlants(out)
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "Show one plant",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Plant
					if err := doPlantsGet(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlantDetail(out)
					return nil
				},
			},
			{
				Name:  "relocate",
				Usage: "Move a plant to a new location",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Plant
					if err := doPlantsRelocate(ctx, cfg, uint(c.Uint("id")), c.String("location"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlantDetail(out)
					return nil
				},
			},
			plantTransitionCommand("flip", "Switch a vegetative plant to flowering", "plants.flip", "/api/plants/flip"),
			plantTransitionCommand("harvest", "Move a flowering plant to harvest", "plants.harvest", "/api/plants/harvest"),
			plantTransitionCommand("dry", "Move a harvested plant to drying", "plants.dry", "/api/plants/dry"),
			plantTransitionCommand("mark-dried", "Mark a drying plant as dried", "plants.mark_dried", "/api/plants/mark-dried"),
			{
				Name:  "stage",
				Usage: "Advance a plant to the named stage",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "stage", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Plant
					if err := doPlantsStage(ctx, cfg, uint(c.Uint("id")), c.String("stage"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printPlantDetail(out)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Remove a plant, recording the reason",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "reason", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.DeletionLog
					if err := doPlantsDelete(ctx, cfg, uint(c.Uint("id")), c.String("reason"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDeletionLog(out)
					return nil
				},
			},
		},
	}
}

func plantTransitionCommand(name, usage, rpcMethod, httpPath string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "id", Required: true},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out domain.Plant
			if err := doPlantTransition(ctx, cfg, rpcMethod, httpPath, uint(c.Uint("id")), &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printPlantDetail(out)
			return nil
		},
	}
}

func harvestsCommand() *cli.Command {
	return &cli.Command{
		Name:  "harvests",
		Usage: "Harvest record commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Record a harvest for a flowering plant",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "plant-id", Required: true},
					&cli.FloatFlag{Name: "yield-grams", Required: true},
					&cli.StringFlag{Name: "status", Value: "drying"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out harvestEventResult
					if err := doHarvestsCreate(ctx, cfg, uint(c.Uint("plant-id")), c.Float("yield-grams"), c.String("status"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHarvestEvent(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List harvests, newest first",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Harvest
					if err := doHarvestsList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHarvests(out)
					return nil
				},
			},
		},
	}
}

func inventoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "inventory",
		Usage: "Inventory commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List inventory items",
				Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.InventoryItem
					if err := doInventoryList(ctx, cfg, c.String("q"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printInventoryItems(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create an inventory item",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "category", Required: true},
					&cli.IntFlag{Name: "quantity"},
					&cli.StringFlag{Name: "unit", Value: "unit"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.InventoryItem
					if err := doInventoryCreate(ctx, cfg, c.String("name"), c.String("category"), int(c.Int("quantity")), c.String("unit"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printInventoryItems([]domain.InventoryItem{out})
					return nil
				},
			},
			{
				Name:  "reduce",
				Usage: "Reduce item stock",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.IntFlag{Name: "amount", Value: 1},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.InventoryItem
					if err := doInventoryReduce(ctx, cfg, uint(c.Uint("id")), int(c.Int("amount")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printInventoryItems([]domain.InventoryItem{out})
					return nil
				},
			},
		},
	}
}

func occupancyCommand() *cli.Command {
	return &cli.Command{
		Name:  "occupancy",
		Usage: "Room occupancy report",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out []domain.RoomOccupancy
			if err := doOccupancy(ctx, cfg, &out); err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}
			printOccupancy(out)
			return nil
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:  "access",
		Usage: "Access and users commands",
		Commands: []*cli.Command{
			{
				Name:  "users",
				Usage: "Manage users",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List users",
						Flags: []cli.Flag{&cli.StringFlag{Name: "q"}, &cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out []domain.User
							if err := doUsersList(ctx, cfg, c.String("q"), &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							printUsers(out)
							return nil
						},
					},
					{
						Name:  "create",
						Usage: "Create user",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "password", Required: true},
							&cli.UintFlag{Name: "role-id"},
							&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out domain.User
							if err := doUsersCreate(ctx, cfg, c.String("email"), c.String("password"), uint(c.Uint("role-id")), &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							printUsers([]domain.User{out})
							return nil
						},
					},
				},
			},
			{
				Name:  "roles",
				Usage: "Manage roles",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List roles",
						Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out []domain.Role
							if err := doRolesList(ctx, cfg, &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							printRoles(out)
							return nil
						},
					},
					{
						Name:  "assign",
						Usage: "Assign role to user",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "user-id", Required: true},
							&cli.UintFlag{Name: "role-id", Required: true},
							&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							var out map[string]any
							if err := doAssignRole(ctx, cfg, uint(c.Uint("user-id")), uint(c.Uint("role-id")), &out); err != nil {
								return err
							}
							if c.Bool("json") {
								return printJSON(out)
							}
							fmt.Printf("assigned role %d to user %d\n", uint(c.Uint("role-id")), uint(c.Uint("user-id")))
							return nil
						},
					},
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
