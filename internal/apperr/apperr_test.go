package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodes(t *testing.T) {
	cases := map[Kind]int{
		KindGeneric:               1,
		KindInsufficientPrivilege: 2,
		KindNoServiceManager:      3,
		KindNoPackageManager:      4,
		KindInvalidInterval:       8,
		KindNoInternet:            9,
		KindTorNotInstalled:       10,
		KindMissingLibrary:        11,
		KindInvalidDuration:       12,
		KindMissingFirewallTool:   13,
		KindRootRequired:          14,
		KindLogUnreadable:         15,
		KindInvalidRegion:         16,
	}
	for k, code := range cases {
		assert.Equal(t, code, k.ExitCode(), k.String())
	}
	assert.Equal(t, 1, Kind(99).ExitCode())
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	base := New(KindInvalidInterval, "parse interval", errors.New("bad range"))
	wrapped := fmt.Errorf("rotation: %w", base)

	assert.True(t, IsKind(wrapped, KindInvalidInterval))
	assert.False(t, IsKind(wrapped, KindNoInternet))
	assert.Equal(t, 8, ExitCode(wrapped))
	assert.Equal(t, "rotation: parse interval: bad range", wrapped.Error())
}

func TestExitCodePlainErrors(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, KindGeneric, KindOf(errors.New("boom")))
}

func TestErrorf(t *testing.T) {
	err := Errorf(KindInvalidRegion, "region %q must be two letters", "USA")
	assert.Equal(t, `region "USA" must be two letters`, err.Error())
	assert.Equal(t, 16, ExitCode(err))
	assert.Equal(t, "tor not installed", New(KindTorNotInstalled, "", nil).Error())
}
