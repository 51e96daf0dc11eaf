package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrganizationPaths(t *testing.T) {
	assert.Equal(t, "/acme/admin", AdminConsole("acme"))
	assert.Equal(t, "/acme/portal", MemberPortal("acme"))
	assert.Equal(t, "/a%2Fb/portal", MemberPortal("a/b"))
}
