// Command createuser provisions an identity directly in the credential
// store. It is the only way to create an admin.
//
//	CREATEUSER_PASSWORD=... createuser -handle ops@careerhub.dev -name ops -role admin
//
// Without CREATEUSER_PASSWORD the password is prompted for on a terminal,
// or read from the first line of stdin otherwise.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Girirajbhatt/careerhub/internal/app"
	"github.com/Girirajbhatt/careerhub/internal/config"
	"github.com/Girirajbhatt/careerhub/internal/domain"
	"github.com/Girirajbhatt/careerhub/internal/event"
	"github.com/Girirajbhatt/careerhub/internal/password"
	"github.com/Girirajbhatt/careerhub/internal/repository/postgres"
	"github.com/Girirajbhatt/careerhub/internal/service"
	"github.com/Girirajbhatt/careerhub/internal/token"
	pkgkafka "github.com/Girirajbhatt/careerhub/pkg/kafka"
	"github.com/Girirajbhatt/careerhub/pkg/logger"
)

const passwordEnv = "CREATEUSER_PASSWORD"

var errNoPassword = errors.New("no password given")

type options struct {
	handle      string
	displayName string
	role        domain.Role
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "createuser:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin *os.File, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("createuser needs STORE_DRIVER=%s, got %q", config.StorePostgres, cfg.StoreDriver)
	}
	log := logger.New("identity-createuser", cfg.LogLevel)

	plaintext, err := readPassword(os.Getenv(passwordEnv), stdin, stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.OpenPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher, err := password.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return err
	}
	codec, err := token.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.TokenIssuer)
	if err != nil {
		return err
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("kafka producer close error", slog.String("error", err.Error()))
		}
	}()

	svc := service.NewAuthService(
		postgres.NewIdentityRepository(pool),
		hasher,
		codec,
		nil,
		event.NewProducer(producer, log),
		service.Config{AccessTTL: cfg.AccessTokenExpiry, RefreshTTL: cfg.RefreshTokenExpiry},
		log,
	)

	identity, err := svc.Provision(ctx, service.RegisterInput{
		Handle:      opts.handle,
		DisplayName: opts.displayName,
		Password:    plaintext,
		Role:        opts.role,
	})
	if err != nil {
		return fmt.Errorf("provision identity: %w", err)
	}

	fmt.Fprintf(stderr, "created %s %s (id=%s)\n", identity.Role, identity.Handle, identity.ID)
	return nil
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	var role string
	fs.StringVar(&opts.handle, "handle", "", "e-mail handle of the new identity (required)")
	fs.StringVar(&opts.displayName, "name", "", "display name (defaults to the handle's local part)")
	fs.StringVar(&role, "role", string(domain.RoleAdmin), "one of student, recruiter, admin")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if strings.TrimSpace(opts.handle) == "" {
		return options{}, errors.New("-handle is required")
	}

	r, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if err != nil {
		return options{}, err
	}
	opts.role = r

	if strings.TrimSpace(opts.displayName) == "" {
		local, _, _ := strings.Cut(strings.TrimSpace(opts.handle), "@")
		opts.displayName = local
	}
	return opts, nil
}

// readPassword prefers the environment, then a no-echo terminal prompt, then
// the first line of a piped stdin.
func readPassword(fromEnv string, stdin *os.File, prompt io.Writer) (string, error) {
	if fromEnv != "" {
		return fromEnv, nil
	}

	if fd := int(stdin.Fd()); term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(pw) == 0 {
			return "", errNoPassword
		}
		return string(pw), nil
	}

	return firstLine(stdin)
}

func firstLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errNoPassword
	}
	return line, nil
}
