package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mlukins/keyfob/internal/otpx"
	"github.com/mlukins/keyfob/internal/session"
	"github.com/mlukins/keyfob/internal/vault"
)

// Add prompts for a new credential and submits it.
func (a *App) Add(ctx context.Context) error {
	form, err := a.promptForm(vault.Form{
		Algorithm: otpx.DefaultAlgorithm,
		Digits:    otpx.DefaultDigits,
		Step:      otpx.DefaultStep,
	}, false)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if _, err := a.sess.Apply(ctx, session.CreateEntry{Form: form}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Added.")
	return nil
}

// Edit prompts for changes to an existing credential. Pressing Enter on a
// field keeps its current value; an empty secret keeps the stored one.
func (a *App) Edit(ctx context.Context) error {
	view, ok := a.pickEntry(ctx)
	if !ok {
		return nil
	}

	form, err := a.promptForm(vault.Form{
		Label:     view.Label,
		Issuer:    view.Issuer,
		IconPath:  view.Icon.Path,
		Algorithm: view.Algorithm,
		Digits:    view.Digits,
		Step:      view.Step,
		Skew:      view.Skew,
	}, true)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}

	if _, err := a.sess.Apply(ctx, session.EditEntry{ID: view.ID, Form: form}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Updated.")
	return nil
}

func (a *App) Delete(ctx context.Context) error {
	view, ok := a.pickEntry(ctx)
	if !ok {
		return nil
	}

	answer, err := GetSimpleText(a.reader, fmt.Sprintf("Delete %q? (y/N)", view.Label), a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	if !strings.EqualFold(answer, "y") {
		printlnFn("Cancelled.")
		return nil
	}

	if _, err := a.sess.Apply(ctx, session.DeleteEntry{ID: view.ID}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn("Deleted.")
	return nil
}

func (a *App) Move(ctx context.Context, up bool) error {
	view, ok := a.pickEntry(ctx)
	if !ok {
		return nil
	}

	if _, err := a.sess.Apply(ctx, session.MoveEntry{ID: view.ID, Up: up}); err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	return a.List(ctx)
}

// Copy prints the entry's current code. Clipboard integration is the
// terminal user's concern.
func (a *App) Copy(ctx context.Context) error {
	view, ok := a.pickEntry(ctx)
	if !ok {
		return nil
	}

	code, err := a.sess.Apply(ctx, session.CopyCode{ID: view.ID})
	if err != nil {
		printlnFn("Error:", err.Error())
		return err
	}
	printlnFn(code)
	return nil
}

// pickEntry lists the vault and prompts for an entry number.
func (a *App) pickEntry(ctx context.Context) (session.EntryView, bool) {
	snap, ok := a.snapshot(ctx)
	if !ok {
		return session.EntryView{}, false
	}
	if len(snap.Entries) == 0 {
		printlnFn("Vault is empty.")
		return session.EntryView{}, false
	}

	a.printEntries(snap)

	text, err := GetSimpleText(a.reader, "Enter entry number", a.out)
	if err != nil {
		printlnFn("Error:", err.Error())
		return session.EntryView{}, false
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(snap.Entries) {
		printlnFn("No such entry:", text)
		return session.EntryView{}, false
	}
	return snap.Entries[n-1], true
}

// promptForm walks the entry fields. Empty answers keep the passed-in
// values, which hold defaults for new entries and current values for edits.
func (a *App) promptForm(def vault.Form, keepSecret bool) (vault.Form, error) {
	label, err := GetSimpleText(a.reader, prompt("Label", def.Label), a.out)
	if err != nil {
		return def, err
	}
	if label != "" {
		def.Label = label
	}

	issuer, err := GetSimpleText(a.reader, prompt("Issuer", def.Issuer), a.out)
	if err != nil {
		return def, err
	}
	if issuer != "" {
		def.Issuer = issuer
	}

	secretPrompt := "Secret (base32)"
	if keepSecret {
		secretPrompt += " [keep current]"
	}
	secret, err := GetSimpleText(a.reader, secretPrompt, a.out)
	if err != nil {
		return def, err
	}
	def.SecretText = secret

	alg, err := GetSimpleText(a.reader, prompt("Algorithm (SHA1/SHA256/SHA512)", string(def.Algorithm)), a.out)
	if err != nil {
		return def, err
	}
	if alg != "" {
		def.Algorithm = otpx.Algorithm(strings.ToUpper(alg))
	}

	if def.Digits, err = a.promptUint("Digits", def.Digits); err != nil {
		return def, err
	}
	if def.Step, err = a.promptUint("Period (seconds)", def.Step); err != nil {
		return def, err
	}
	return def, nil
}

func (a *App) promptUint(name string, def uint) (uint, error) {
	text, err := GetSimpleText(a.reader, prompt(name, strconv.FormatUint(uint64(def), 10)), a.out)
	if err != nil {
		return def, err
	}
	if text == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return def, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return uint(n), nil
}

func prompt(name, def string) string {
	if def == "" {
		return name
	}
	return fmt.Sprintf("%s [%s]", name, def)
}
