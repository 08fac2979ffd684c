// Package vault defines the persisted credential records, the ordered
// collection holding them, and the runtime-only per-entry code cache.
package vault

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/common"
	"github.com/mlukins/keyfob/internal/otpx"
)

// Entry is one persisted TOTP credential. ID is immutable after creation.
// Runtime state (last code, countdown) lives in State, never here.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Label     string         `json:"label"`
	Issuer    string         `json:"issuer,omitempty"`
	Icon      Icon           `json:"icon"`
	Secret    []byte         `json:"secret"`
	Algorithm otpx.Algorithm `json:"algorithm"`
	Digits    uint           `json:"digits"`
	Step      uint           `json:"step"`
	Skew      uint           `json:"skew"`
}

// Icon is either an image-file reference or a 1-2 character initials
// fallback. Exactly one of the two is set.
type Icon struct {
	Path     string
	Initials string
}

type iconImage struct {
	Path string `json:"path"`
}

type iconInitials struct {
	Text string `json:"text"`
}

type iconJSON struct {
	Image    *iconImage    `json:"Image,omitempty"`
	Initials *iconInitials `json:"Initials,omitempty"`
}

func (i Icon) MarshalJSON() ([]byte, error) {
	if i.Path != "" {
		return json.Marshal(iconJSON{Image: &iconImage{Path: i.Path}})
	}
	return json.Marshal(iconJSON{Initials: &iconInitials{Text: i.Initials}})
}

func (i *Icon) UnmarshalJSON(b []byte) error {
	var raw iconJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Image != nil:
		*i = Icon{Path: raw.Image.Path}
	case raw.Initials != nil:
		*i = Icon{Initials: raw.Initials.Text}
	default:
		return fmt.Errorf("icon must be Image or Initials")
	}
	return nil
}

// DefaultIcon derives an initials icon from the label, falling back to the
// issuer when the label is blank. Two-word names contribute one rune each;
// shorter names contribute their first two runes; an empty name yields "-".
func DefaultIcon(label, issuer string) Icon {
	name := strings.TrimSpace(label)
	if name == "" {
		name = strings.TrimSpace(issuer)
	}

	words := strings.Fields(name)
	if len(words) >= 2 {
		a := []rune(words[0])
		b := []rune(words[1])
		return Icon{Initials: string([]rune{a[0], b[0]})}
	}

	runes := []rune(name)
	switch {
	case len(runes) >= 2:
		return Icon{Initials: string(runes[:2])}
	case len(runes) == 1:
		return Icon{Initials: string(runes)}
	default:
		return Icon{Initials: "-"}
	}
}

// Form collects the user-entered fields for creating or editing an entry.
// SecretText holds the encoded secret as typed; for edits an empty
// SecretText keeps the stored secret.
type Form struct {
	Label      string
	Issuer     string
	SecretText string
	IconPath   string
	Algorithm  otpx.Algorithm
	Digits     uint
	Step       uint
	Skew       uint
}

func (f Form) withDefaults() Form {
	if f.Algorithm == "" {
		f.Algorithm = otpx.DefaultAlgorithm
	}
	if f.Digits == 0 {
		f.Digits = otpx.DefaultDigits
	}
	if f.Step == 0 {
		f.Step = otpx.DefaultStep
	}
	if f.Skew == 0 {
		f.Skew = otpx.DefaultSkew
	}
	return f
}

func (f Form) validate() error {
	if strings.TrimSpace(f.Label) == "" {
		return fmt.Errorf("label must not be empty")
	}
	if !f.Algorithm.Valid() {
		return fmt.Errorf("unknown algorithm %q", string(f.Algorithm))
	}
	return nil
}

// Build validates the form and constructs a new Entry with a fresh id.
// On any failure no entry is constructed and the form stays usable for
// correction.
func (f Form) Build() (Entry, error) {
	f = f.withDefaults()
	if err := f.validate(); err != nil {
		return Entry{}, err
	}

	secret, err := otpx.DecodeSecret(f.SecretText)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:        uuid.New(),
		Label:     f.Label,
		Issuer:    f.Issuer,
		Icon:      f.icon(),
		Secret:    secret,
		Algorithm: f.Algorithm,
		Digits:    f.Digits,
		Step:      f.Step,
		Skew:      f.Skew,
	}, nil
}

// Apply produces an updated copy of an existing entry, preserving its id.
// An empty SecretText keeps the current secret bytes; otherwise the new
// secret must decode, or the original entry is returned unchanged.
func (f Form) Apply(e Entry) (Entry, error) {
	f = f.withDefaults()
	if err := f.validate(); err != nil {
		return e, err
	}

	secret := e.Secret
	if f.SecretText != "" {
		decoded, err := otpx.DecodeSecret(f.SecretText)
		if err != nil {
			return e, err
		}
		secret = decoded
	}
	if len(secret) == 0 {
		return e, fmt.Errorf("empty secret: %w", common.ErrSecretDecode)
	}

	return Entry{
		ID:        e.ID,
		Label:     f.Label,
		Issuer:    f.Issuer,
		Icon:      f.icon(),
		Secret:    secret,
		Algorithm: f.Algorithm,
		Digits:    f.Digits,
		Step:      f.Step,
		Skew:      f.Skew,
	}, nil
}

func (f Form) icon() Icon {
	if f.IconPath != "" {
		return Icon{Path: f.IconPath}
	}
	return DefaultIcon(f.Label, f.Issuer)
}
