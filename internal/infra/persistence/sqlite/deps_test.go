package sqlite

import (
	"herdcore/testutil"
	"strings"
	"testing"
)

func TestSQLiteStoreWrapsMemoryOnly(t *testing.T) {
	allowed := map[string]bool{
		"herdcore/pkg/domain":                        true,
		"herdcore/internal/infra/persistence/memory": true,
	}
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, "herdcore/") && !allowed[path]
	}, "sqlite store only layers persistence over the memory engine")
}
