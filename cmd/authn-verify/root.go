package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/keksclan/goAuthn/authn"
	"github.com/keksclan/goAuthn/authnconfig"
	"github.com/spf13/cobra"
)

const maxStdinToken = 64 << 10

type flags struct {
	configPath string
	envPrefix  string
	token      string
	claims     bool
	verbose    bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "authn-verify",
		Short:         "Verify an identity token and print its subject",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if f.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			err := run(cmd.Context(), f, stdin, stdout, logger)
			if err != nil {
				logger.Error("verification failed", "error", err, "retryable", authn.IsRetryable(err))
			}
			return err
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (.json or .lua); environment variables are used when empty")
	fl.StringVar(&f.envPrefix, "env-prefix", "AUTHN", "prefix of configuration environment variables")
	fl.StringVarP(&f.token, "token", "t", "", "token to verify; read from stdin when empty")
	fl.BoolVar(&f.claims, "claims", false, "print all verified claims as JSON instead of the subject")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log key fetches and rejections to stderr")
	return cmd
}

func run(ctx context.Context, f flags, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	loader, err := configLoader(f)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	tok := f.token
	if tok == "" {
		b, err := io.ReadAll(io.LimitReader(stdin, maxStdinToken))
		if err != nil {
			return fmt.Errorf("read token from stdin: %w", err)
		}
		tok = string(b)
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return authn.ErrTokenMissing
	}

	client, err := authn.New(*cfg, authn.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	if f.claims {
		res, err := client.Verify(ctx, tok)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Claims)
	}

	sub, err := client.SubjectFrom(ctx, tok)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, sub)
	return err
}

var errUnsupportedConfig = errors.New("unsupported config file type")

func configLoader(f flags) (authnconfig.Loader, error) {
	if f.configPath == "" {
		return authnconfig.FromEnv(f.envPrefix), nil
	}
	switch strings.ToLower(filepath.Ext(f.configPath)) {
	case ".json":
		return authnconfig.FromJSONFile(f.configPath), nil
	case ".lua":
		return authnconfig.FromLuaFile(f.configPath), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedConfig, f.configPath)
	}
}
