package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/Myahse/Intranet-Djogana-sub000/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

const maxLoginAttempts = 3

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "requests":
		err = commandRequests(args)
	case "directions":
		err = commandDirections(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	identifier := fs.String("id", "", "Account identifier")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	useDevice := fs.Bool("device", true, "Use mobile-approved login (set to false for direct login)")
	fs.Parse(args)

	if strings.TrimSpace(*identifier) == "" {
		return errors.New("--id is required")
	}

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	} else if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	if !*useDevice {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		resp, err := client.Login(ctx, *identifier, secret)
		if err != nil {
			return err
		}
		cfg.AccessToken = resp.Tokens.AccessToken
		if err := saveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("login successful")
		return nil
	}

	tokens, err := deviceLogin(context.Background(), client, *identifier, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

// deviceLogin runs the mobile-approved flow: open a request, show the code,
// poll until the owner acts. Expired attempts are retried after the
// server-announced cooldown; denial and supersession abort immediately.
func deviceLogin(ctx context.Context, client *apiclient.Client, identifier, password string) (apiclient.TokenPair, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		start, err := client.StartDeviceLogin(startCtx, identifier, password)
		cancel()
		if err != nil {
			return apiclient.TokenPair{}, err
		}
		fmt.Printf("Verification code: %s\n", start.Code)
		fmt.Printf("Approve this login from your mobile before %s\n", start.ExpiresAt.Local().Format("15:04:05"))

		resp, err := client.WaitForApproval(ctx, start)
		if err == nil {
			if resp.Tokens == nil {
				return apiclient.TokenPair{}, errors.New("login approved but tokens unavailable")
			}
			return *resp.Tokens, nil
		}
		switch {
		case errors.Is(err, apiclient.ErrLoginDenied):
			return apiclient.TokenPair{}, errors.New("login was denied from the mobile device")
		case errors.Is(err, apiclient.ErrLoginSuperseded):
			return apiclient.TokenPair{}, errors.New("login request was replaced by a newer attempt")
		case errors.Is(err, apiclient.ErrLoginExpired):
			if attempt == maxLoginAttempts {
				return apiclient.TokenPair{}, errors.New("login request expired, giving up")
			}
			cooldown := start.Cooldown()
			fmt.Printf("Request expired, retrying in %s...\n", cooldown)
			select {
			case <-ctx.Done():
				return apiclient.TokenPair{}, ctx.Err()
			case <-time.After(cooldown):
			}
		default:
			return apiclient.TokenPair{}, err
		}
	}
	return apiclient.TokenPair{}, errors.New("login request expired, giving up")
}

func commandRequests(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: dgctl requests [list|history|approve|deny]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return requestsList(args[1:])
	case "history":
		return requestsHistory(args[1:])
	case "approve":
		return requestsResolve(args[1:], true)
	case "deny":
		return requestsResolve(args[1:], false)
	default:
		return fmt.Errorf("unknown requests command: %s", sub)
	}
}

func requestsList(args []string) error {
	fs := flag.NewFlagSet("requests list", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	entries, err := client.ListPendingLogins(ctx, token)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no pending login requests")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%s\t%s\texpires %s\n", entry.RequestID, entry.Code, entry.ExpiresAt.Local().Format("15:04:05"))
	}
	return nil
}

func requestsHistory(args []string) error {
	fs := flag.NewFlagSet("requests history", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum number of entries to display")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	entries, err := client.LoginHistory(ctx, token)
	if err != nil {
		return err
	}
	count := len(entries)
	if *limit > 0 && *limit < count {
		count = *limit
	}
	for i := 0; i < count; i++ {
		entry := entries[i]
		resolved := ""
		if entry.ResolvedAt != nil {
			resolved = entry.ResolvedAt.Local().Format(time.RFC3339)
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", entry.RequestID, entry.Status, entry.ActedDevice, resolved)
	}
	return nil
}

func requestsResolve(args []string, approve bool) error {
	name := "requests deny"
	if approve {
		name = "requests approve"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	requestID := fs.String("request", "", "Login request identifier")
	deviceName := fs.String("device", "", "Acting device label")
	fs.Parse(args)

	if strings.TrimSpace(*requestID) == "" {
		return errors.New("--request is required")
	}

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var resp apiclient.ResolveResponse
	if approve {
		resp, err = client.ApproveLogin(ctx, token, *requestID, *deviceName)
	} else {
		resp, err = client.DenyLogin(ctx, token, *requestID, *deviceName)
	}
	if err != nil {
		return err
	}
	fmt.Printf("request %s is now %s\n", resp.RequestID, resp.Status)
	return nil
}

func commandDirections(args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return errors.New("usage: dgctl directions list")
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	directions, err := client.ListDirections(ctx, token)
	if err != nil {
		return err
	}
	for _, direction := range directions {
		fmt.Printf("%s\t%s\n", direction.ID, direction.Name)
	}
	return nil
}

func authedClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'dgctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:4000"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "dgctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("dgctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	dgctl login --id <identifier> [--password secret] [--api http://localhost:4000] [--device=false]
	dgctl requests list
	dgctl requests history [--limit N]
	dgctl requests approve --request <request-id> [--device label]
	dgctl requests deny --request <request-id> [--device label]
	dgctl directions list
	dgctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
