package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"custody-vault/internal/adapter/http/middleware"
	"custody-vault/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type signOptions struct {
	key    string
	method string
	path   string
	body   string
	login  bool
}

func newSignCmd() *cobra.Command {
	opts := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print signed-request headers, or a login body with --login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSign(cmd, opts, time.Now())
		},
	}
	cmd.Flags().StringVar(&opts.key, "key", "", "base64 ed25519 seed (default $"+keyEnv+")")
	cmd.Flags().StringVar(&opts.method, "method", "POST", "HTTP method")
	cmd.Flags().StringVar(&opts.path, "path", "", "request path, e.g. /api/v1/vaults/fund1/deposit")
	cmd.Flags().StringVar(&opts.body, "body", "", "exact request body")
	cmd.Flags().BoolVar(&opts.login, "login", false, "print a signed login request body")
	return cmd
}

func runSign(cmd *cobra.Command, opts *signOptions, now time.Time) error {
	priv, id, err := loadKey(opts.key)
	if err != nil {
		return err
	}
	sigSvc := service.NewEd25519SignatureService()
	ts := now.Unix()
	out := cmd.OutOrStdout()

	if opts.login {
		body, err := json.Marshal(map[string]any{
			"identity":  id.String(),
			"timestamp": ts,
			"signature": sigSvc.Sign(priv, service.LoginChallenge(id, ts)),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(body))
		return nil
	}

	if opts.path == "" {
		return fmt.Errorf("--path is required")
	}
	method := strings.ToUpper(opts.method)
	nonce := uuid.NewString()
	canonical := sigSvc.BuildCanonicalString(method, opts.path, ts, nonce, opts.body)

	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderIdentity, id)
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderSignature, sigSvc.Sign(priv, canonical))
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderNonce, nonce)
	return nil
}
