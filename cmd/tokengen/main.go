// Package main provides a CLI for local gateway operations: hashing user
// passwords for the directory, generating signing secrets, and minting
// access tokens against a local signing key.
// Minted tokens are only as trustworthy as the key they are signed with;
// never point this tool at a production key.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/authz"
	jwttoken "github.com/jasonachkar/secure-api-gateway-sub001/internal/jwt_token"
	"github.com/jasonachkar/secure-api-gateway-sub001/pkg/secrets"
)

const (
	// Matches the config fallback when JWT_SIGNING_KEY is unset outside production.
	devSigningKey = "dev-only-signing-key-change-me-in-production"

	defaultIssuer   = "secure-api-gateway"
	defaultTokenTTL = 15 * time.Minute
)

type output struct {
	Value     string            `json:"value"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage,omitempty"`
}

func main() {
	hashCmd := flag.NewFlagSet("hash", flag.ExitOnError)
	hashCost := hashCmd.Int("cost", secrets.DefaultCost, "bcrypt cost")
	hashJSON := hashCmd.Bool("json", false, "Output as JSON")

	secretCmd := flag.NewFlagSet("secret", flag.ExitOnError)
	secretJSON := secretCmd.Bool("json", false, "Output as JSON")

	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessSubject := accessCmd.String("sub", "", "Principal ID. Generated if empty.")
	accessName := accessCmd.String("name", "Local User", "Display name")
	accessRoles := accessCmd.String("roles", "user", "Comma-separated roles")
	accessRoleFile := accessCmd.String("role-file", "", "Role permission TOML file. Built-in table if empty.")
	accessIssuer := accessCmd.String("issuer", defaultIssuer, "Token issuer")
	accessTTL := accessCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "hash":
		hashCmd.Parse(os.Args[2:])
		hashPassword(hashCmd.Arg(0), *hashCost, *hashJSON)
	case "secret":
		secretCmd.Parse(os.Args[2:])
		generateSecret(*secretJSON)
	case "access":
		accessCmd.Parse(os.Args[2:])
		generateAccessToken(*accessSubject, *accessName, *accessRoles, *accessRoleFile, *accessIssuer, *accessTTL, *accessJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - local tooling for the security gateway

Usage:
  tokengen <command> [flags]

Commands:
  hash      Hash a password for the user directory (reads stdin if no argument)
  secret    Generate a random secret suitable for JWT_SIGNING_KEY
  access    Mint an access token signed with JWT_SIGNING_KEY (or the dev key)

Examples:
  # Hash a password for a users row
  echo -n 'correct-horse-battery' | tokengen hash

  # Generate a signing key
  tokengen secret

  # Mint an analyst token for the local gateway
  tokengen access -roles analyst -ttl 1h

Use "tokengen <command> -h" for more information about a command.`)
}

func hashPassword(password string, cost int, jsonOutput bool) {
	if password == "" {
		password = readStdin()
	}
	if password == "" {
		fail("password is required")
	}

	hash, err := secrets.HashWithCost(password, cost)
	if err != nil {
		fail("hash password: %v", err)
	}

	if jsonOutput {
		printJSON(output{Value: hash, Type: "bcrypt_hash", Usage: map[string]string{"column": "users.password_hash"}})
		return
	}
	fmt.Println(hash)
}

func generateSecret(jsonOutput bool) {
	secret, err := secrets.Generate()
	if err != nil {
		fail("generate secret: %v", err)
	}

	if jsonOutput {
		printJSON(output{Value: secret, Type: "secret", Usage: map[string]string{"env": "JWT_SIGNING_KEY"}})
		return
	}
	fmt.Println(secret)
}

func generateAccessToken(subject, name, roleList, roleFile, issuer string, ttl time.Duration, jsonOutput bool) {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	keyType := "env"
	if signingKey == "" {
		signingKey = devSigningKey
		keyType = "dev"
	}
	key, err := jwttoken.NewHMACKey([]byte(signingKey))
	if err != nil {
		fail("signing key: %v", err)
	}

	table, err := authz.LoadRoleTable(roleFile)
	if err != nil {
		fail("load roles: %v", err)
	}

	if subject == "" {
		subject = uuid.NewString()
	}
	roles := splitList(roleList)
	permissions := table.Permissions(roles)
	jti := uuid.NewString()
	now := time.Now()

	token, err := jwttoken.NewJWTService(key, issuer).Sign(jwttoken.Claims{
		Name:        name,
		Roles:       roles,
		Permissions: permissions,
		Type:        jwttoken.TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	if err != nil {
		fail("sign token: %v", err)
	}

	if jsonOutput {
		printJSON(output{
			Value:     token,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub":         subject,
				"name":        name,
				"roles":       roles,
				"permissions": permissions,
				"jti":         jti,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Subject:     %s\n", subject)
	fmt.Printf("Roles:       %v\n", roles)
	fmt.Printf("Permissions: %v\n", permissions)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/me")
}

func readStdin() string {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func splitList(list string) []string {
	if list == "" {
		return []string{}
	}
	parts := strings.Split(list, ",")
	result := make([]string, 0, len(parts))
	for _, s := range parts {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("encode JSON: %v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
