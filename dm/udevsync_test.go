package dm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Semaphore sets are ordinary kernel IPC objects, so these tests run against
// the real semaphore API without needing device-mapper or elevated
// privileges. What matters most here is that no path can leak a set.

func TestBeginSyncInactive(t *testing.T) {
	// Non primary-source commands never allocate a semaphore, whatever the
	// flags say.
	s, err := beginSync(zap.NewNop(), UdevPrimarySource, 0, false)
	require.NoError(t, err)
	assert.False(t, s.active())
	assert.Equal(t, uint32(UdevPrimarySource)<<udevFlagsShift, s.cookie)
	assert.NoError(t, s.end(true))

	// Primary-source commands without the primary source flag requested do
	// not allocate one either.
	s, err = beginSync(zap.NewNop(), 0, 0, true)
	require.NoError(t, err)
	assert.False(t, s.active())
	assert.Zero(t, s.cookie)
	s.cancel()
}

func TestBeginSyncEndWithoutEvent(t *testing.T) {
	s, err := beginSync(zap.NewNop(), UdevPrimarySource, 0, true)
	require.NoError(t, err)
	require.True(t, s.active())
	assert.NotZero(t, uint16(s.cookie), "cookie nonce must be non-zero")
	assert.Equal(t, uint32(UdevPrimarySource), s.cookie>>udevFlagsShift)

	semID := s.semID
	v, err := s.getVal()
	require.NoError(t, err)
	assert.Equal(t, 2, v, "two acknowledgments must be pending after begin")

	// The kernel reported no uevent, so no udev rule will ever decrement:
	// end must compensate on its own and return without blocking.
	require.NoError(t, s.end(false))
	assert.False(t, s.active())

	// The set must be gone afterwards.
	leaked := udevSync{log: zap.NewNop(), semID: semID}
	_, err = leaked.getVal()
	assert.Error(t, err)
}

func TestBeginSyncCancel(t *testing.T) {
	s, err := beginSync(zap.NewNop(), UdevPrimarySource, 0, true)
	require.NoError(t, err)
	require.True(t, s.active())

	semID := s.semID
	s.cancel()
	assert.False(t, s.active())

	leaked := udevSync{log: zap.NewNop(), semID: semID}
	_, err = leaked.getVal()
	assert.Error(t, err)

	// cancel and end are idempotent once the transaction is consumed.
	s.cancel()
	assert.NoError(t, s.end(false))
}

func TestBeginSyncExplicitCookieCollision(t *testing.T) {
	s, err := beginSync(zap.NewNop(), UdevPrimarySource, 4711, true)
	require.NoError(t, err)
	require.True(t, s.active())
	defer s.cancel()
	assert.Equal(t, uint32(4711), s.cookie&0xffff)

	// With a caller-chosen nonce the key is fixed: a collision must fail
	// instead of silently switching to another key.
	_, err = beginSync(zap.NewNop(), UdevPrimarySource, 4711, true)
	assert.ErrorIs(t, err, ErrRendezvousInit)
}

func TestEndAcknowledgesUdev(t *testing.T) {
	s, err := beginSync(zap.NewNop(), UdevPrimarySource, 0, true)
	require.NoError(t, err)
	require.True(t, s.active())

	// Simulate the udev rule acknowledging the event before end runs, the
	// way the real rule does via the cookie-derived key.
	rule := udevSync{log: zap.NewNop(), semID: s.semID}
	require.NoError(t, rule.semOp(-1, unix.IPC_NOWAIT))

	require.NoError(t, s.end(true))
	assert.False(t, s.active())
}
