package vault

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mlukins/keyfob/internal/common"
)

// Vault is the ordered collection of a user's entries. Order is
// user-significant and preserved across save and load. Entry ids are unique
// within a vault.
type Vault struct {
	entries []Entry
}

// New builds a vault from entries, rejecting duplicate ids.
func New(entries []Entry) (*Vault, error) {
	v := &Vault{}
	for _, e := range entries {
		if err := v.Add(e); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Vault) Len() int { return len(v.entries) }

// Entries returns a copy of the ordered entry slice. Secret bytes are
// deep-copied: callers (background saves in particular) own their snapshot
// and are unaffected by a later Wipe or Remove on the vault.
func (v *Vault) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	for i := range out {
		secret := make([]byte, len(out[i].Secret))
		copy(secret, out[i].Secret)
		out[i].Secret = secret
	}
	return out
}

func (v *Vault) index(id uuid.UUID) int {
	for i, e := range v.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (v *Vault) Get(id uuid.UUID) (Entry, bool) {
	if i := v.index(id); i >= 0 {
		return v.entries[i], true
	}
	return Entry{}, false
}

// Add appends e, rejecting a duplicate id.
func (v *Vault) Add(e Entry) error {
	if v.index(e.ID) >= 0 {
		return fmt.Errorf("duplicate entry id %s", e.ID)
	}
	v.entries = append(v.entries, e)
	return nil
}

// Update replaces the entry with e.ID in place, keeping its position. A
// replaced secret is wiped unless the update kept the same backing array.
func (v *Vault) Update(e Entry) error {
	i := v.index(e.ID)
	if i < 0 {
		return common.ErrEntryNotFound
	}
	old := v.entries[i].Secret
	v.entries[i] = e
	if len(old) > 0 && (len(e.Secret) == 0 || &old[0] != &e.Secret[0]) {
		common.WipeByteArray(old)
	}
	return nil
}

// Remove deletes the entry and wipes its secret bytes.
func (v *Vault) Remove(id uuid.UUID) error {
	i := v.index(id)
	if i < 0 {
		return common.ErrEntryNotFound
	}
	common.WipeByteArray(v.entries[i].Secret)
	v.entries = append(v.entries[:i], v.entries[i+1:]...)
	return nil
}

// MoveUp swaps the entry with its predecessor. Moving the first entry up is
// a no-op; the second return reports whether anything changed.
func (v *Vault) MoveUp(id uuid.UUID) (bool, error) {
	i := v.index(id)
	if i < 0 {
		return false, common.ErrEntryNotFound
	}
	if i == 0 {
		return false, nil
	}
	v.entries[i-1], v.entries[i] = v.entries[i], v.entries[i-1]
	return true, nil
}

// MoveDown swaps the entry with its successor. Moving the last entry down
// is a no-op.
func (v *Vault) MoveDown(id uuid.UUID) (bool, error) {
	i := v.index(id)
	if i < 0 {
		return false, common.ErrEntryNotFound
	}
	if i == len(v.entries)-1 {
		return false, nil
	}
	v.entries[i], v.entries[i+1] = v.entries[i+1], v.entries[i]
	return true, nil
}

// IDs returns the entry ids in vault order.
func (v *Vault) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(v.entries))
	for i, e := range v.entries {
		ids[i] = e.ID
	}
	return ids
}

// Wipe zeroes every secret and drops the entries. Called on logout so no
// decrypted key material survives in the collection.
func (v *Vault) Wipe() {
	for i := range v.entries {
		common.WipeByteArray(v.entries[i].Secret)
	}
	v.entries = nil
}

// Marshal serializes the vault as the ordered JSON array of records.
func Marshal(v *Vault) ([]byte, error) {
	if v.entries == nil {
		return json.Marshal([]Entry{})
	}
	return json.Marshal(v.entries)
}

// Unmarshal parses the ordered JSON array, mapping any failure to
// common.ErrParse.
func Unmarshal(data []byte) (*Vault, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	v, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	return v, nil
}
