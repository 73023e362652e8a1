package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Brownie44l1/attendance/internal/i18n"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOTP_IssueAndVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	expiresAt, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(5*time.Minute), expiresAt)

	msg := h.gw.last(t)
	assert.Equal(t, testChatID, msg.ChatID)
	code := h.gw.lastOTP(t)
	assert.Len(t, code, 6)

	stored := h.store.otps[0]
	assert.NotEqual(t, code, stored.CodeHash)
	assert.Equal(t, models.RequestCheckIn, stored.RequestKind)

	res, err := h.otp.Verify(ctx, s.Token, code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCheckedIn, res.Outcome)
	assert.NotNil(t, h.store.otps[0].UsedAt)

	require.Len(t, h.store.logs, 1)
	assert.Equal(t, models.MethodOTP, h.store.logs[0].Method)

	_, err = h.otp.Verify(ctx, s.Token, code)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)
}

func TestOTP_BoundedRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	code := h.gw.lastOTP(t)

	for want := 2; want >= 0; want-- {
		_, err := h.otp.Verify(ctx, s.Token, wrongCode(code))
		require.ErrorIs(t, err, models.ErrOTPInvalid)
		var mismatch *OTPMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, want, mismatch.Remaining)
	}

	_, err = h.otp.Verify(ctx, s.Token, code)
	assert.ErrorIs(t, err, models.ErrOTPMaxAttempts)
	assert.Zero(t, h.store.recordCount())
	assert.Nil(t, h.store.otps[0].UsedAt)

	failures := 0
	for _, l := range h.store.logs {
		if !l.Success {
			failures++
		}
	}
	assert.Equal(t, 3, failures)
}

func TestOTP_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	code := h.gw.lastOTP(t)

	h.clock.Advance(5*time.Minute + time.Second)
	_, err = h.otp.Verify(ctx, s.Token, code)
	assert.ErrorIs(t, err, models.ErrOTPExpired)
}

func TestOTP_OnlyLatestCodeIsLive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	first := h.gw.lastOTP(t)

	_, err = h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	second := h.gw.lastOTP(t)

	if first != second {
		_, err = h.otp.Verify(ctx, s.Token, first)
		assert.ErrorIs(t, err, models.ErrOTPInvalid)
	}
	res, err := h.otp.Verify(ctx, s.Token, second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCheckedIn, res.Outcome)
}

func TestOTP_NoCodeIssued(t *testing.T) {
	h := newHarness(t)
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Verify(context.Background(), s.Token, "123456")
	assert.ErrorIs(t, err, models.ErrOTPNotFound)
}

func TestOTP_IssueRequiresLiveSessionAndChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.otp.Issue(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	s := h.authSession(t, models.RequestCheckIn, 1)
	h.org.BotToken = ""
	_, err = h.otp.Issue(ctx, s.Token)
	assert.ErrorIs(t, err, models.ErrChannelUnavailable)
	assert.Empty(t, h.store.otps)
}

func TestOTP_ResendCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.otp.throttle = &memoryThrottle{}
	h.otp.cooldown = time.Minute
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	_, err = h.otp.Issue(ctx, s.Token)
	assert.ErrorIs(t, err, models.ErrOTPResendCooldown)
	assert.Len(t, h.store.otps, 1)
}

func TestOTP_DeliveryFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.gw.failSend = true
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(context.Background(), s.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deliver OTP")
}

func TestOTP_DefaultThrottle(t *testing.T) {
	svc := NewOTPService(nil, nil, nil, nil, nil, nil, nil, time.Minute, time.Now, logger.Discard())
	ok, err := svc.throttle.Allow(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOTP_ConcurrentWrongGuessesAreBounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	code := h.gw.lastOTP(t)

	const guesses = 10
	errs := make(chan error, guesses)
	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.otp.Verify(ctx, s.Token, wrongCode(code))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	mismatches, maxed := 0, 0
	for err := range errs {
		var mismatch *OTPMismatchError
		switch {
		case errors.As(err, &mismatch):
			mismatches++
		case errors.Is(err, models.ErrOTPMaxAttempts):
			maxed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, models.OTPMaxAttempts, mismatches)
	assert.Equal(t, guesses-models.OTPMaxAttempts, maxed)
	assert.Equal(t, models.OTPMaxAttempts, h.store.otps[0].Attempts)

	_, err = h.otp.Verify(ctx, s.Token, code)
	assert.ErrorIs(t, err, models.ErrOTPMaxAttempts)
	assert.Zero(t, h.store.recordCount())
}

// exhaustingStore lets a wrong guess land between reading the code and
// claiming it.
type exhaustingStore struct {
	*fakeStore
}

func (e *exhaustingStore) MarkUsed(ctx context.Context, id string, at time.Time, maxAttempts int) error {
	if _, err := e.fakeStore.RegisterFailedAttempt(ctx, id, maxAttempts); err != nil {
		return err
	}
	return e.fakeStore.MarkUsed(ctx, id, at, maxAttempts)
}

func TestOTP_CorrectCodeLosingToLastWrongGuess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.authSession(t, models.RequestCheckIn, 1)

	_, err := h.otp.Issue(ctx, s.Token)
	require.NoError(t, err)
	code := h.gw.lastOTP(t)

	for i := 0; i < models.OTPMaxAttempts-1; i++ {
		_, err := h.otp.Verify(ctx, s.Token, wrongCode(code))
		require.ErrorIs(t, err, models.ErrOTPInvalid)
	}

	tr, err := i18n.New("en")
	require.NoError(t, err)
	provider := &fakeProvider{gw: h.gw}
	racing := NewOTPService(h.sessions, &exhaustingStore{h.store}, h.store, h.completion, provider,
		NewNotifier(provider, tr, logger.Discard()), nil, 0, h.clock.Now, logger.Discard())

	_, err = racing.Verify(ctx, s.Token, code)
	assert.ErrorIs(t, err, models.ErrOTPMaxAttempts)
	assert.Nil(t, h.store.otps[0].UsedAt)
	assert.Zero(t, h.store.recordCount())
}
