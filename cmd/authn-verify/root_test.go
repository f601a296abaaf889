package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keksclan/goAuthn/authn"
	"github.com/keksclan/goAuthn/authntest"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func writeJSONConfig(t *testing.T, iss *authntest.Issuer) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "authn.json")
	doc := fmt.Sprintf(`{"issuer": %q, "audiences": [%q]}`, iss.URL(), iss.Audience())
	if err := os.WriteFile(p, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestVerifyTokenFlag(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()

	out, _, err := execute(t, "", "--config", writeJSONConfig(t, iss), "--token", iss.TokenFor("erin"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "erin\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestVerifyTokenFromStdin(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()

	out, _, err := execute(t, iss.TokenFor("erin")+"\n", "--config", writeJSONConfig(t, iss))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "erin\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestVerifyLuaConfig(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()

	p := filepath.Join(t.TempDir(), "authn.lua")
	script := fmt.Sprintf(`return { issuer = %q, audiences = { %q } }`, iss.URL(), iss.Audience())
	if err := os.WriteFile(p, []byte(script), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err := execute(t, "", "-c", p, "-t", iss.TokenFor("frank"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "frank\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestVerifyEnvConfig(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()

	t.Setenv("AUTHNCLI_ISSUER", iss.URL())
	t.Setenv("AUTHNCLI_AUDIENCES", iss.Audience())

	out, _, err := execute(t, "", "--env-prefix", "AUTHNCLI", "--token", iss.TokenFor("grace"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "grace\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestVerifyClaims(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()

	tok := iss.Mint(map[string]any{"sub": "heidi", "scope": "read"})
	out, _, err := execute(t, "", "--config", writeJSONConfig(t, iss), "--token", tok, "--claims")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal([]byte(out), &claims); err != nil {
		t.Fatalf("decode claims %q: %v", out, err)
	}
	if claims["sub"] != "heidi" || claims["scope"] != "read" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestVerifyFailures(t *testing.T) {
	iss := authntest.NewIssuer("cli.example.com")
	defer iss.Close()
	cfg := writeJSONConfig(t, iss)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no token", []string{"--config", cfg}, authn.ErrTokenMissing},
		{"expired", []string{"--config", cfg, "--token", iss.Mint(map[string]any{"sub": "x", "exp": 1})}, authn.ErrTokenExpired},
		{"malformed", []string{"--config", cfg, "--token", "nope"}, authn.ErrTokenMalformed},
		{"unsupported config", []string{"--config", "authn.yaml", "--token", "x"}, errUnsupportedConfig},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "absent.json"), "--token", "x"}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stderr, err := execute(t, "", tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if out != "" {
				t.Fatalf("stdout = %q, want empty", out)
			}
			if !strings.Contains(stderr, "verification failed") {
				t.Fatalf("stderr = %q", stderr)
			}
		})
	}
}
