package cli

import (
	"herdcore/testutil"
	"testing"
)

func TestCLIReachesBackendsThroughFacades(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "commands open stores via core and blob")
}
