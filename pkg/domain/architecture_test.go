package domain

import (
	"testing"

	"nutrilog/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of storage,
// transport and service packages so it can be shared with clients.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not depend on internal packages")
}

func TestDomainHasNoThirdPartyImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImportForbidden, "domain is stdlib plus pkg/units")
}
