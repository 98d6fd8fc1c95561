package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"custody-vault/config"
	"custody-vault/internal/core/domain"

	"github.com/spf13/cobra"
)

// keyEnv holds the base64 ed25519 seed when --key is not given.
const keyEnv = "VAULTCTL_KEY"

type rootOptions struct {
	configPath string
	programID  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Custody vault identities, addresses and signed requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (defaults to ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.programID, "program-id", "", "program id for derivation (overrides config)")

	cmd.AddCommand(
		newKeygenCmd(),
		newDeriveCmd(opts),
		newSignCmd(),
	)
	return cmd
}

// program resolves the derivation program id from the flag or config.
func (o *rootOptions) program() (domain.PublicKey, error) {
	if o.programID != "" {
		return domain.ParsePublicKey(o.programID)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return domain.PublicKey{}, err
	}
	return domain.ParsePublicKey(cfg.Vault.ProgramID)
}

// loadKey decodes a base64 ed25519 seed from flag or environment.
func loadKey(flag string) (ed25519.PrivateKey, domain.PublicKey, error) {
	encoded := flag
	if encoded == "" {
		encoded = os.Getenv(keyEnv)
	}
	if encoded == "" {
		return nil, domain.PublicKey{}, fmt.Errorf("no signing key: pass --key or set %s", keyEnv)
	}
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.PublicKey{}, fmt.Errorf("decoding key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, domain.PublicKey{}, fmt.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	id, err := domain.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, domain.PublicKey{}, err
	}
	return priv, id, nil
}
