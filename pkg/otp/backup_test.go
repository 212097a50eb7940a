package otp_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/otp"
)

func TestGenerateBackupCodes(t *testing.T) {
	t.Parallel()

	codes, err := otp.GenerateBackupCodes(otp.DefaultBackupCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		assert.Len(t, code, otp.BackupCodeLength)
		assert.Equal(t, strings.ToUpper(code), code)
		assert.True(t, otp.ValidBackupCodeFormat(code))
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 10, "codes must be unique")
}

func TestGenerateBackupCodes_InvalidCount(t *testing.T) {
	t.Parallel()

	_, err := otp.GenerateBackupCodes(0)
	require.ErrorIs(t, err, otp.ErrInvalidBackupCodeCount)

	_, err = otp.GenerateBackupCodes(-3)
	require.ErrorIs(t, err, otp.ErrInvalidBackupCodeCount)
}

func TestRedeemBackupCode(t *testing.T) {
	t.Parallel()

	codes, err := otp.GenerateBackupCodes(3)
	require.NoError(t, err)

	target := codes[1]

	remaining, ok := otp.RedeemBackupCode(codes, target)
	require.True(t, ok)
	assert.Len(t, remaining, 2)
	assert.NotContains(t, remaining, target)

	// A consumed code cannot be redeemed a second time.
	_, ok = otp.RedeemBackupCode(remaining, target)
	assert.False(t, ok)
}

func TestRedeemBackupCode_CaseInsensitive(t *testing.T) {
	t.Parallel()

	codes, err := otp.GenerateBackupCodes(2)
	require.NoError(t, err)

	remaining, ok := otp.RedeemBackupCode(codes, strings.ToLower(codes[0]))
	require.True(t, ok)
	assert.NotContains(t, remaining, codes[0])
}

func TestRedeemBackupCode_Malformed(t *testing.T) {
	t.Parallel()

	codes, err := otp.GenerateBackupCodes(2)
	require.NoError(t, err)

	tests := []struct {
		name      string
		candidate string
	}{
		{name: "too short", candidate: "ABC123"},
		{name: "too long", candidate: codes[0] + "FF"},
		{name: "non hex", candidate: "ZZZZZZZZZZ"},
		{name: "empty", candidate: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, ok := otp.RedeemBackupCode(codes, tt.candidate)
			assert.False(t, ok)
		})
	}
}
