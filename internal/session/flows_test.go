package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_StartsCooldown(t *testing.T) {
	env := setup(t)
	env.sut.BeginRegistration()
	assert.Equal(t, StepAwaitingRegistration, env.sut.RegistrationStep())

	ch, err := env.sut.Register(context.Background(), "Asha", "asha@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, StepAwaitingCode, env.sut.RegistrationStep())
	assert.Equal(t, domain.OnboardingChallenge{
		Email:                          "asha@example.com",
		Mode:                           domain.ChallengeRegister,
		ResendCooldownSecondsRemaining: RegistrationCooldown,
	}, ch)
	assert.True(t, env.sut.registration.cooldown.Running())
}

func TestRegister_FailureStaysInStep(t *testing.T) {
	env := setup(t)
	env.api.setErr("register", apperr.FromStatus(http.StatusConflict, "User already exists"))

	_, err := env.sut.Register(context.Background(), "Asha", "asha@example.com", "secret")

	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, StepAwaitingRegistration, env.sut.RegistrationStep())
	_, ok := env.sut.RegistrationChallenge()
	assert.False(t, ok)
}

func TestRegister_LocalValidation(t *testing.T) {
	env := setup(t)

	_, err := env.sut.Register(context.Background(), " ", "asha@example.com", "secret")

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, env.api.count("register"))
}

func TestResendCode_CooldownGate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	cd := env.sut.registration.cooldown

	env.clock.advance(t, cd, 1)
	ch, ok := env.sut.RegistrationChallenge()
	require.True(t, ok)
	assert.Equal(t, RegistrationCooldown-1, ch.ResendCooldownSecondsRemaining)

	_, err = env.sut.ResendCode(ctx, "")
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Zero(t, env.api.count("resend"))

	env.clock.advance(t, cd, RegistrationCooldown-1)
	assert.Equal(t, 0, cd.Remaining())

	ch, err = env.sut.ResendCode(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, RegistrationCooldown, ch.ResendCooldownSecondsRemaining)
	assert.Equal(t, 1, env.api.count("resend"))
	assert.Equal(t, StepAwaitingCode, env.sut.RegistrationStep())
}

func TestResendCode_FailureKeepsChallenge(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	env.clock.advance(t, env.sut.registration.cooldown, RegistrationCooldown)
	env.api.setErr("resend", apperr.FromStatus(http.StatusTooManyRequests, "Too many requests"))

	_, err = env.sut.ResendCode(ctx, "")

	assert.Equal(t, "Too many requests", apperr.UserMessage(err))
	assert.Equal(t, StepAwaitingCode, env.sut.RegistrationStep())
	assert.Equal(t, 0, env.sut.registration.cooldown.Remaining())
}

func TestResendCode_WithoutChallenge(t *testing.T) {
	env := setup(t)

	_, err := env.sut.ResendCode(context.Background(), "asha@example.com")

	assert.ErrorIs(t, err, ErrNoChallenge)
}

func TestVerifyCode_Authenticates(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)

	sess, err := env.sut.VerifyCode(ctx, "", "123456")

	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated())
	assert.Equal(t, StepIdle, env.sut.RegistrationStep())
	assert.False(t, env.sut.registration.cooldown.Running())
	token, ok := env.storedToken(t)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)
}

func TestVerifyCode_WrongCodeStaysInStep(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	env.api.setErr("verify", apperr.FromStatus(http.StatusBadRequest, "Invalid or expired OTP"))

	_, err = env.sut.VerifyCode(ctx, "", "000000")

	assert.Equal(t, "Invalid or expired OTP", apperr.UserMessage(err))
	assert.Equal(t, StepAwaitingCode, env.sut.RegistrationStep())
	assert.False(t, env.sut.Session().IsAuthenticated())

	env.api.setErr("verify", nil)
	sess, err := env.sut.VerifyCode(ctx, "", "123456")
	require.NoError(t, err)
	assert.True(t, sess.IsAuthenticated())
}

func TestVerifyCode_WithoutChallenge(t *testing.T) {
	env := setup(t)

	_, err := env.sut.VerifyCode(context.Background(), "asha@example.com", "123456")

	assert.ErrorIs(t, err, ErrNoChallenge)
	assert.Zero(t, env.api.count("verify"))
}

func TestAbandonRegistration_StopsCooldownAndDiscardsLateResult(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)

	release := env.api.hold("verify")
	done := make(chan error, 1)
	go func() {
		_, err := env.sut.VerifyCode(ctx, "", "123456")
		done <- err
	}()
	env.api.waitEntered(t, "verify")

	env.sut.AbandonRegistration()
	assert.Equal(t, StepIdle, env.sut.RegistrationStep())
	assert.False(t, env.sut.registration.cooldown.Running())
	assert.True(t, env.clock.latest().stopped.Load())

	close(release)
	assert.ErrorIs(t, <-done, ErrFlowAbandoned)
	assert.False(t, env.sut.Session().IsAuthenticated())
	_, ok := env.storedToken(t)
	assert.False(t, ok)
}

func TestRegister_RejectsConcurrentCall(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	release := env.api.hold("register")

	done := make(chan error, 1)
	go func() {
		_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
		done <- err
	}()
	env.api.waitEntered(t, "register")

	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestRecovery_FullFlow(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	env.sut.BeginRecovery()
	assert.Equal(t, StepAwaitingResetRequest, env.sut.RecoveryStep())

	ch, err := env.sut.RequestReset(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingResetCode, env.sut.RecoveryStep())
	assert.Equal(t, domain.ChallengePasswordReset, ch.Mode)
	assert.Equal(t, ResetInitialCooldown, ch.ResendCooldownSecondsRemaining)

	_, err = env.sut.ResendResetCode(ctx, "")
	assert.ErrorIs(t, err, ErrCooldownActive)

	env.clock.advance(t, env.sut.recovery.cooldown, ResetInitialCooldown)
	ch, err = env.sut.ResendResetCode(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ResetResendCooldown, ch.ResendCooldownSecondsRemaining)
	assert.Equal(t, 2, env.api.count("forgot"))

	msg, err := env.sut.SubmitReset(ctx, "", "123456", "newpass", "newpass")
	require.NoError(t, err)
	assert.Equal(t, "Password reset successful", msg)
	assert.Equal(t, StepIdle, env.sut.RecoveryStep())
	assert.False(t, env.sut.recovery.cooldown.Running())
	assert.False(t, env.sut.Session().IsAuthenticated())
}

func TestSubmitReset_MismatchMakesNoNetworkCall(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.RequestReset(ctx, "asha@example.com")
	require.NoError(t, err)

	_, err = env.sut.SubmitReset(ctx, "", "123456", "newpass", "newpaSS")

	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, env.api.count("reset"))
	assert.Equal(t, StepAwaitingResetCode, env.sut.RecoveryStep())
}

func TestSubmitReset_ExpiredCodeStaysInStep(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.RequestReset(ctx, "asha@example.com")
	require.NoError(t, err)
	env.api.setErr("reset", apperr.FromStatus(http.StatusBadRequest, "OTP expired"))

	_, err = env.sut.SubmitReset(ctx, "", "123456", "newpass", "newpass")

	assert.Equal(t, "OTP expired", apperr.UserMessage(err))
	assert.Equal(t, StepAwaitingResetCode, env.sut.RecoveryStep())
}

func TestRequestReset_FailureStaysInStep(t *testing.T) {
	env := setup(t)
	env.api.setErr("forgot", apperr.FromStatus(http.StatusNotFound, "User not found"))

	_, err := env.sut.RequestReset(context.Background(), "nobody@example.com")

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, StepAwaitingResetRequest, env.sut.RecoveryStep())
}

func TestAbandonRecovery(t *testing.T) {
	env := setup(t)
	_, err := env.sut.RequestReset(context.Background(), "asha@example.com")
	require.NoError(t, err)

	env.sut.AbandonRecovery()

	assert.Equal(t, StepIdle, env.sut.RecoveryStep())
	assert.Equal(t, 0, env.sut.recovery.cooldown.Remaining())
	_, ok := env.sut.RecoveryChallenge()
	assert.False(t, ok)
}

func TestFlowsAreIndependent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	_, err := env.sut.Register(ctx, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	_, err = env.sut.RequestReset(ctx, "asha@example.com")
	require.NoError(t, err)

	env.sut.AbandonRecovery()

	assert.Equal(t, StepAwaitingCode, env.sut.RegistrationStep())
	assert.True(t, env.sut.registration.cooldown.Running())
}
