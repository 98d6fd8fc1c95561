package postgres

import (
	"fmt"
	"strconv"

	"custody-vault/internal/core/domain"
)

// formatAmount renders a base-unit amount for a NUMERIC(20,0) parameter.
func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseAmount reads a NUMERIC(20,0) column selected as ::text.
func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func parseKey(s, column string) (domain.PublicKey, error) {
	k, err := domain.ParsePublicKey(s)
	if err != nil {
		return k, fmt.Errorf("parse %s: %w", column, err)
	}
	return k, nil
}

// parseKeys decodes column/value pairs into the given key pointers.
func parseKeys(pairs ...keyColumn) error {
	for _, p := range pairs {
		k, err := parseKey(p.raw, p.column)
		if err != nil {
			return err
		}
		*p.dst = k
	}
	return nil
}

type keyColumn struct {
	column string
	raw    string
	dst    *domain.PublicKey
}
