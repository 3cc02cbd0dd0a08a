package provisioner

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// databaseNameFor derives the tenant database name from the tenant ID.
// Hyphens are stripped so the name stays a plain identifier.
func databaseNameFor(tenantID uuid.UUID) string {
	return "tenant_" + strings.ReplaceAll(tenantID.String(), "-", "")
}

// roleNameFor derives the tenant's dedicated login role name
func roleNameFor(tenantID uuid.UUID) string {
	return "u_tenant_" + strings.ReplaceAll(tenantID.String(), "-", "")
}

// newPassword generates a random credential for a tenant role
func newPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
