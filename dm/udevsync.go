package dm

import (
	"errors"
	"fmt"
	"math/rand"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// The udev rendezvous protocol. State-changing commands make the kernel emit
// a uevent, which udev processes asynchronously; depending on timing the udev
// rule may run before, during or after the ioctl returns. To let the caller
// wait for that processing, a SysV semaphore set is created under a key
// derived from a random cookie nonce, the nonce travels to the udev rule in
// the low half of the header's event correlator field, and both sides
// decrement the semaphore when done. The caller blocks on wait-for-zero, so
// it cannot proceed until udev has consumed the event.
//
// Lifecycle per transaction: beginSync immediately before the ioctl, then
// exactly one end (after success) or cancel (on any error path). Transactions
// are never reused; every created semaphore set is destroyed on every exit
// path so no kernel IPC object can leak.

const (
	// cookieMagic tags semaphore keys as device-mapper udev cookies
	// (DM_COOKIE_MAGIC in libdevmapper).
	cookieMagic = 0x0D4D
	// udevFlagsShift splits the event correlator field: udev flags above,
	// cookie nonce below.
	udevFlagsShift = 16

	cookiePerms = 0o600

	// Attempts at finding an unused semaphore key before giving up.
	semKeyAttempts = 4

	// semctl commands, not provided by x/sys/unix.
	semGetVal = 12
	semSetVal = 16
)

type udevSync struct {
	log *zap.Logger
	// cookie is the full event correlator value for the request header:
	// udev flags in the high half, nonce in the low half. Set even for
	// inactive transactions, where the nonce half is zero.
	cookie uint32
	// semID is the semaphore set identifier, or -1 when the transaction is
	// inactive or already consumed.
	semID int
}

// beginSync opens a rendezvous transaction. Commands that are not a primary
// event source, or callers that did not request primary source notification,
// get an inactive transaction back: no semaphore is created and end/cancel
// are no-ops. nonce is the caller's explicit cookie nonce, or zero to
// generate one; with an explicit nonce a key collision is an error instead of
// a retry, since retrying would change the key the caller asked for.
func beginSync(log *zap.Logger, flags UdevFlags, nonce uint16, primarySource bool) (*udevSync, error) {
	s := &udevSync{log: log, cookie: uint32(flags) << udevFlagsShift, semID: -1}
	if !primarySource || flags&UdevPrimarySource == 0 {
		return s, nil
	}

	attempts := semKeyAttempts
	if nonce != 0 {
		attempts = 1
	}
	base := nonce
	for i := 0; ; i++ {
		if i >= attempts {
			return nil, fmt.Errorf("%w: no unused semaphore key after %d attempts", ErrRendezvousInit, attempts)
		}
		for base == 0 {
			base = uint16(rand.Uint32())
		}
		id, err := semGet(cookieMagic<<udevFlagsShift | int(base))
		if err == nil {
			s.semID = id
			break
		}
		if !errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: creating semaphore set: %w", ErrRendezvousInit, err)
		}
		base = 0
	}
	s.cookie |= uint32(base)

	// Two pending acknowledgments: one from this process, one from the udev
	// rule. The value is set to 1 and verified before the increment so a
	// semaphore set racing through creation cannot start at a wrong value.
	if err := s.semCtl(semSetVal, 1); err != nil {
		s.cancel()
		return nil, fmt.Errorf("%w: initializing semaphore: %w", ErrRendezvousInit, err)
	}
	if v, err := s.getVal(); err != nil || v != 1 {
		s.cancel()
		if err == nil {
			err = fmt.Errorf("value is %d, expected 1", v)
		}
		return nil, fmt.Errorf("%w: verifying semaphore value: %w", ErrRendezvousInit, err)
	}
	if err := s.semOp(1, 0); err != nil {
		s.cancel()
		return nil, fmt.Errorf("%w: arming semaphore: %w", ErrRendezvousInit, err)
	}

	log.Debug("created udev sync semaphore", zap.Int("semid", s.semID),
		zap.Uint32("cookie", s.cookie))
	return s, nil
}

// end consumes the transaction after a successful ioctl. eventGenerated is
// the kernel's FlagUeventGenerated response bit: when the kernel skipped the
// uevent the udev rule will never run, so its acknowledgment is compensated
// here, otherwise the subsequent wait would block forever. A failed handshake
// is returned as ErrRendezvousSync but the semaphore set is destroyed
// regardless.
func (s *udevSync) end(eventGenerated bool) error {
	if s.semID < 0 {
		return nil
	}
	err := func() error {
		if !eventGenerated {
			if err := s.semOp(-1, unix.IPC_NOWAIT); err != nil {
				return fmt.Errorf("compensating for skipped uevent: %w", err)
			}
		}
		if err := s.semOp(-1, unix.IPC_NOWAIT); err != nil {
			return fmt.Errorf("acknowledging own cookie: %w", err)
		}
		// Blocks until the udev rule has decremented its half.
		if err := s.semOp(0, 0); err != nil {
			return fmt.Errorf("waiting for udev acknowledgment: %w", err)
		}
		return nil
	}()
	if derr := s.semCtl(unix.IPC_RMID, 0); derr != nil && err == nil {
		err = fmt.Errorf("destroying semaphore set: %w", derr)
	}
	s.semID = -1
	if err != nil {
		s.log.Warn("udev sync handshake failed", zap.Uint32("cookie", s.cookie), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRendezvousSync, err)
	}
	return nil
}

// cancel destroys the semaphore set without waiting for acknowledgments.
// Used on every error path between beginSync and the completed ioctl. Never
// blocks.
func (s *udevSync) cancel() {
	if s.semID < 0 {
		return
	}
	if err := s.semCtl(unix.IPC_RMID, 0); err != nil {
		s.log.Warn("failed to destroy udev sync semaphore", zap.Int("semid", s.semID),
			zap.Uint32("cookie", s.cookie), zap.Error(err))
	}
	s.semID = -1
}

// active reports whether the transaction still holds a semaphore set.
func (s *udevSync) active() bool {
	return s.semID >= 0
}

type sembuf struct {
	semNum uint16
	semOp  int16
	semFlg int16
}

func semGet(key int) (int, error) {
	id, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), 1,
		uintptr(unix.IPC_CREAT|unix.IPC_EXCL|cookiePerms))
	if errno != 0 {
		return -1, errno
	}
	return int(id), nil
}

func (s *udevSync) semCtl(cmd, arg int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(s.semID), 0, uintptr(cmd),
		uintptr(arg), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *udevSync) getVal() (int, error) {
	v, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(s.semID), 0, semGetVal, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(v), nil
}

func (s *udevSync) semOp(delta int16, flags int16) error {
	op := sembuf{semOp: delta, semFlg: flags}
	// The unsafe.Pointer conversion must stay inside the Syscall expression
	// so the referenced struct is retained until the call completes.
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(s.semID), uintptr(unsafe.Pointer(&op)), 1)
	if errno != 0 {
		return errno
	}
	return nil
}
