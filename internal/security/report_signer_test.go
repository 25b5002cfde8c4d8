package security

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SignAndVerify(t *testing.T) {
	signer, err := New(Options{
		SignatureEnabled:  true,
		SignatureValidity: time.Hour,
	})
	require.NoError(t, err)

	payload := map[string]interface{}{
		"outcomes": []string{"a", "b"},
		"total":    800.0,
	}

	report, err := signer.Sign(payload)
	require.NoError(t, err)
	require.NotNil(t, report.Signature)
	assert.Equal(t, signer.PublicKey(), report.Signature.PublicKey)

	valid, err := signer.Verify(report)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSigner_DetectsTampering(t *testing.T) {
	signer, err := New(Options{
		SignatureEnabled:  true,
		SignatureValidity: time.Hour,
	})
	require.NoError(t, err)

	report, err := signer.Sign(map[string]interface{}{"amount": 500.0})
	require.NoError(t, err)

	report.Payload = json.RawMessage(`{"amount":999999.0}`)

	valid, err := signer.Verify(report)
	assert.False(t, valid)
	assert.Error(t, err)
}

func TestSigner_ExpiredSignature(t *testing.T) {
	signer, err := New(Options{
		SignatureEnabled:  true,
		SignatureValidity: -time.Minute, // already expired when issued
	})
	require.NoError(t, err)

	report, err := signer.Sign(map[string]interface{}{"amount": 500.0})
	require.NoError(t, err)

	valid, err := signer.Verify(report)
	assert.False(t, valid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSigner_DisabledPassthrough(t *testing.T) {
	signer, err := New(Options{SignatureEnabled: false})
	require.NoError(t, err)

	report, err := signer.Sign(map[string]interface{}{"amount": 500.0})
	require.NoError(t, err)
	assert.Nil(t, report.Signature)

	// Unsigned reports pass lenient verification but fail strict mode.
	valid, err := signer.Verify(report)
	assert.False(t, valid)
	assert.NoError(t, err)

	strict, err := New(Options{SignatureEnabled: false, StrictMode: true})
	require.NoError(t, err)
	_, err = strict.Verify(report)
	assert.Error(t, err)
}
