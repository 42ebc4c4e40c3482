package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/homecloud/thinqd/internal/config"
	"github.com/homecloud/thinqd/internal/sessionstore"
	"github.com/homecloud/thinqd/thinq"
	"github.com/homecloud/thinqd/thinq/devices"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fatal("config", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch os.Args[1] {
	case "auth-url":
		fmt.Println(thinq.OAuthURL(endpoints(cfg), cfg.Country, cfg.Language))
	case "login":
		loginCmd(ctx, cfg, os.Args[2:])
	case "devices":
		devicesCmd(ctx, cfg)
	case "status":
		statusCmd(ctx, cfg, os.Args[2:])
	case "monitor":
		monitorCmd(ctx, cfg, os.Args[2:])
	case "command":
		commandCmd(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func loginCmd(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("login", fmt.Errorf("missing callback token"))
	}

	store := sessionstore.NewFileStore(cfg.SessionFile)
	auth := authManager(ctx, cfg, store)

	session, err := auth.Login(ctx, thinq.Credentials{AuthCode: args[0]})
	if err != nil {
		fatal("login", err)
	}
	fmt.Printf("logged in: %s protocol, gateway %s\n", session.Version, session.GatewayBaseURL)
}

func devicesCmd(ctx context.Context, cfg *config.Config) {
	client := connect(ctx, cfg)

	descriptors, err := client.ListDevices(ctx)
	if err != nil {
		fatal("list devices", err)
	}
	for _, desc := range descriptors {
		kind := devices.KindForTypeCode(desc.DeviceTypeCode)
		fmt.Printf("%s\t%s\t%s\t%s\n", desc.DeviceID, kind, desc.ModelName, desc.Alias)
	}
}

func statusCmd(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("status", fmt.Errorf("missing device id"))
	}
	deviceID := args[0]

	client := connect(ctx, cfg)
	model := resolveModel(ctx, client, deviceID)

	payload, err := client.FetchStatus(ctx, deviceID)
	if err != nil {
		fatal("fetch status", err)
	}
	printStatus(model, payload)
}

func monitorCmd(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("monitor", fmt.Errorf("missing device id"))
	}
	deviceID := args[0]

	client := connect(ctx, cfg)
	model := resolveModel(ctx, client, deviceID)

	monitor := thinq.NewMonitor(client)
	session, err := monitor.Start(ctx, deviceID)
	if err != nil {
		fatal("start monitor", err)
	}
	defer monitor.StopAll(context.Background())

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		payload, err := monitor.Poll(ctx, session)
		switch {
		case errors.Is(err, thinq.ErrNotReady):
			// no new data yet
		case err != nil:
			fatal("poll", err)
		default:
			printStatus(model, payload)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func commandCmd(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) < 3 {
		fatal("command", fmt.Errorf("usage: command <device_id> <key> <value>"))
	}
	deviceID, key, value := args[0], args[1], args[2]

	client := connect(ctx, cfg)
	model := resolveModel(ctx, client, deviceID)

	intent := devices.Intent{Key: key}
	if number, err := strconv.ParseFloat(value, 64); err == nil {
		intent.Numeric = true
		intent.Value = number
	} else {
		intent.Label = value
	}

	cmd, err := model.EncodeCommand(intent)
	if err != nil {
		fatal("encode command", err)
	}
	if err := client.SendCommand(ctx, deviceID, cmd); err != nil {
		fatal("send command", err)
	}
	fmt.Println("ok")
}

func authManager(ctx context.Context, cfg *config.Config, store sessionstore.Store) *thinq.AuthManager {
	return thinq.NewAuthManager(thinq.AuthConfig{
		Endpoints: endpoints(cfg),
		Country:   cfg.Country,
		Language:  cfg.Language,
		OnUpdate: func(session thinq.Session) {
			if err := store.Save(ctx, session); err != nil {
				fmt.Fprintf(os.Stderr, "persist session: %v\n", err)
			}
		},
	})
}

// connect builds a gateway client from the persisted session.
func connect(ctx context.Context, cfg *config.Config) *thinq.Client {
	store := sessionstore.NewFileStore(cfg.SessionFile)
	auth := authManager(ctx, cfg, store)

	session, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			fatal("session", fmt.Errorf("not logged in, run: thinq-cli login <token>"))
		}
		fatal("session", err)
	}
	auth.Restore(session)

	return thinq.NewClient(auth)
}

func resolveModel(ctx context.Context, client *thinq.Client, deviceID string) devices.Model {
	descriptors, err := client.ListDevices(ctx)
	if err != nil {
		fatal("list devices", err)
	}
	for _, desc := range descriptors {
		if desc.DeviceID != deviceID {
			continue
		}
		info, err := client.FetchModelInfo(ctx, desc.ModelInfoRef)
		if err != nil {
			fmt.Fprintf(os.Stderr, "model schema unavailable, raw decode only: %v\n", err)
			return devices.NewGeneric(desc, nil)
		}
		return devices.New(desc, info)
	}
	fatal("device", fmt.Errorf("%s not found on account", deviceID))
	return nil
}

func printStatus(model devices.Model, payload thinq.RawPayload) {
	raw, err := thinq.Normalize(payload, model.Info())
	if err != nil {
		fatal("normalize", err)
	}
	status := model.Decode(raw)

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		fatal("encode", err)
	}
	fmt.Println(string(out))
}

func endpoints(cfg *config.Config) thinq.Endpoints {
	eps := thinq.DefaultEndpoints()
	if cfg.AuthBase != "" {
		eps.AuthBase = cfg.AuthBase
	}
	if cfg.V1Base != "" {
		eps.V1Base = cfg.V1Base
	}
	if cfg.V2Base != "" {
		eps.V2Base = cfg.V2Base
	}
	return eps
}

func resolveConfigPath() string {
	if value := os.Getenv("THINQD_CONFIG"); value != "" {
		return value
	}
	return config.DefaultPath
}

func usage() {
	fmt.Println("thinq-cli <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  auth-url")
	fmt.Println("  login <callback_token>")
	fmt.Println("  devices")
	fmt.Println("  status <device_id>")
	fmt.Println("  monitor <device_id>")
	fmt.Println("  command <device_id> <key> <value>")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
