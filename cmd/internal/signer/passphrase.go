package signer

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// PassphraseEnv is checked before prompting for a keystore passphrase.
const PassphraseEnv = "WACG_KEYSTORE_PASS"

// Passphrase lazily resolves a keystore passphrase from an environment
// variable or by prompting on the terminal. The first result is cached.
type Passphrase struct {
	envVar string

	once  sync.Once
	value string
	err   error
}

// NewPassphrase returns a source that reads envVar before prompting.
func NewPassphrase(envVar string) *Passphrase {
	return &Passphrase{envVar: strings.TrimSpace(envVar)}
}

// Get returns the passphrase. An environment value is used verbatim; a
// prompted one must not be blank.
func (p *Passphrase) Get() (string, error) {
	p.once.Do(func() {
		if p.envVar != "" {
			if value, ok := os.LookupEnv(p.envVar); ok {
				if strings.TrimSpace(value) == "" {
					p.err = fmt.Errorf("%s is set but empty", p.envVar)
					return
				}
				p.value = value
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if p.envVar != "" {
				p.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", p.envVar)
			} else {
				p.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}

		fmt.Fprint(os.Stderr, "Enter keystore passphrase: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			p.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			p.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		p.value = string(raw)
	})
	return p.value, p.err
}
