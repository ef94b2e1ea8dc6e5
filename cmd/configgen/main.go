package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danmuck/canlat/internal/config"
	"github.com/danmuck/canlat/internal/transform"
)

func main() {
	kind := flag.String("kind", "initiator", "config kind: initiator|responder")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	keys := flag.String("rsa-keys", "", "write RSA key pairs of these comma separated sizes")
	keyDir := flag.String("key-dir", "keys", "directory for generated RSA key files")
	flag.Parse()

	if *keys != "" {
		if err := writeKeys(*keyDir, *keys, *force); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		cfg, err := config.LoadNodeConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		if cfg.Role != *kind {
			log.Fatalf("config at %s has role %s, expected %s", path, cfg.Role, *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case config.RoleInitiator:
		return "cmd/initiatorctl/config.toml"
	case config.RoleResponder:
		return "cmd/responderctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

// writeKeys generates one key pair per size as rsa-<bits>.pem (private,
// for the initiator) and rsa-<bits>.pub.pem (public, for the responder).
func writeKeys(dir, sizes string, overwrite bool) error {
	var bits []int
	for _, part := range strings.Split(sizes, ",") {
		b, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("parse rsa size %q: %w", part, err)
		}
		bits = append(bits, b)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	generated, err := transform.GenerateRSAKeys(bits...)
	if err != nil {
		return err
	}
	for _, b := range bits {
		privPath := filepath.Join(dir, fmt.Sprintf("rsa-%d.pem", b))
		pubPath := filepath.Join(dir, fmt.Sprintf("rsa-%d.pub.pem", b))
		if !overwrite {
			if _, err := os.Stat(privPath); err == nil {
				return fmt.Errorf("key already exists: %s", privPath)
			}
		}
		if err := transform.WriteRSAKeyFile(privPath, generated[b]); err != nil {
			return err
		}
		if err := transform.WriteRSAPublicKeyFile(pubPath, &generated[b].PublicKey); err != nil {
			return err
		}
		log.Printf("Wrote rsa-%d key pair to %s", b, dir)
	}
	return nil
}
