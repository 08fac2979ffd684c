package vault

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/otpx"
)

func TestIcon_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		icon Icon
		want string
	}{
		{"image", Icon{Path: "/tmp/gh.png"}, `{"Image":{"path":"/tmp/gh.png"}}`},
		{"initials", Icon{Initials: "GH"}, `{"Initials":{"text":"GH"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.icon)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))

			var got Icon
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, tc.icon, got)
		})
	}
}

func TestIcon_UnmarshalRejectsUnknownShape(t *testing.T) {
	var got Icon
	assert.Error(t, json.Unmarshal([]byte(`{"Glyph":{"text":"X"}}`), &got))
}

func TestDefaultIcon(t *testing.T) {
	tests := []struct {
		label, issuer, want string
	}{
		{"GitHub Account", "", "GA"},
		{"GitHub", "", "Gi"},
		{"g", "", "g"},
		{"", "Example Corp", "EC"},
		{"", "", "-"},
		{"  spaced   words  ", "", "sw"},
		{"émile zola", "", "éz"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, DefaultIcon(tc.label, tc.issuer).Initials,
			"label=%q issuer=%q", tc.label, tc.issuer)
	}
}

func TestForm_Build_Defaults(t *testing.T) {
	e, err := Form{Label: "GitHub", SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	require.NoError(t, err)

	assert.NotEqual(t, e.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, otpx.AlgorithmSHA1, e.Algorithm)
	assert.Equal(t, uint(6), e.Digits)
	assert.Equal(t, uint(30), e.Step)
	assert.Equal(t, uint(1), e.Skew)
	assert.Len(t, e.Secret, 16) // 10-byte secret padded
	assert.Equal(t, "Gi", e.Icon.Initials)
}

func TestForm_Build_ExplicitIcon(t *testing.T) {
	e, err := Form{Label: "X", SecretText: "MZXW6YTB", IconPath: "/icons/x.png"}.Build()
	require.NoError(t, err)
	assert.Equal(t, "/icons/x.png", e.Icon.Path)
	assert.Empty(t, e.Icon.Initials)
}

func TestForm_Build_BadSecret(t *testing.T) {
	_, err := Form{Label: "GitHub", SecretText: "not!base32"}.Build()
	assert.ErrorIs(t, err, common.ErrSecretDecode)

	_, err = Form{Label: "GitHub"}.Build()
	assert.ErrorIs(t, err, common.ErrSecretDecode)
}

func TestForm_Build_EmptyLabel(t *testing.T) {
	_, err := Form{SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	assert.Error(t, err)
}

func TestForm_Apply_KeepsSecretWhenBlank(t *testing.T) {
	orig, err := Form{Label: "GitHub", SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	require.NoError(t, err)

	updated, err := Form{Label: "GitHub Work", Issuer: "GitHub"}.Apply(orig)
	require.NoError(t, err)

	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.Secret, updated.Secret)
	assert.Equal(t, "GitHub Work", updated.Label)
}

func TestForm_Apply_BadSecretLeavesEntryUnchanged(t *testing.T) {
	orig, err := Form{Label: "GitHub", SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	require.NoError(t, err)

	got, err := Form{Label: "Other", SecretText: "!!!"}.Apply(orig)
	assert.ErrorIs(t, err, common.ErrSecretDecode)
	assert.Equal(t, orig, got)
}

func TestEntry_JSONShape(t *testing.T) {
	e, err := Form{Label: "GitHub", Issuer: "GitHub Inc", SecretText: "JBSWY3DPEHPK3PXP"}.Build()
	require.NoError(t, err)

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"id", "label", "issuer", "icon", "secret", "algorithm", "digits", "step", "skew"} {
		assert.Contains(t, m, key)
	}
	// Runtime cache fields never leak into the persisted record.
	assert.NotContains(t, m, "code")
	assert.NotContains(t, m, "fraction")
}
