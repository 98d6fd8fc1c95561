package main

import (
	"fmt"

	"custody-vault/internal/core/domain"

	"github.com/spf13/cobra"
)

func newDeriveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print derived addresses and bumps",
	}

	var name string
	vault := &cobra.Command{
		Use:   "vault",
		Short: "Vault address for a name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := domain.ValidateVaultName(name); err != nil {
				return err
			}
			return printDerived(cmd, opts, domain.VaultSeeds(name))
		},
	}
	vault.Flags().StringVar(&name, "name", "", "vault name")
	_ = vault.MarkFlagRequired("name")

	cmd.AddCommand(
		vault,
		pairCmd(opts, "position", "Investor position address", "vault", "investor", domain.PositionSeeds),
		pairCmd(opts, "vault-token", "Vault custody account address", "vault", "asset", domain.VaultTokenSeeds),
		pairCmd(opts, "investor-token", "Investor custody account address", "investor", "asset", domain.InvestorTokenSeeds),
	)
	return cmd
}

// pairCmd builds a derive subcommand whose seeds are two public keys.
func pairCmd(opts *rootOptions, use, short, first, second string, seeds func(a, b domain.PublicKey) [][]byte) *cobra.Command {
	var a, b string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ka, err := domain.ParsePublicKey(a)
			if err != nil {
				return fmt.Errorf("--%s: %w", first, err)
			}
			kb, err := domain.ParsePublicKey(b)
			if err != nil {
				return fmt.Errorf("--%s: %w", second, err)
			}
			return printDerived(cmd, opts, seeds(ka, kb))
		},
	}
	cmd.Flags().StringVar(&a, first, "", first+" public key (base58)")
	cmd.Flags().StringVar(&b, second, "", second+" public key (base58)")
	_ = cmd.MarkFlagRequired(first)
	_ = cmd.MarkFlagRequired(second)
	return cmd
}

func printDerived(cmd *cobra.Command, opts *rootOptions, seeds [][]byte) error {
	programID, err := opts.program()
	if err != nil {
		return err
	}
	addr, bump, err := domain.FindProgramAddress(seeds, programID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nbump:    %d\n", addr, bump)
	return nil
}
