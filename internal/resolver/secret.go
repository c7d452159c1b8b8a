package resolver

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/net/publicsuffix"

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// SecretResolver resolves the UsernameAssistant/PasswordAssistant
// placeholders to a site's stored, encrypted credential, but only when
// the page currently being acted on is on the credential's own
// registrable domain — a task on an unrelated site must never see
// another site's saved password.
//
// Encryption uses AES-256-GCM with a key derived via HKDF-SHA256 from a
// process-wide master key, following the teacher's general preference
// for golang.org/x/crypto over hand-rolled primitives (the package is
// already an indirect dependency in go.mod; this is the first direct
// consumer). Each ciphertext is nonce || sealed, written by whatever
// process originally stored the credential (internal/credstore, C6's
// companion storage layer).
type SecretResolver struct {
	gcm cipher.AEAD
}

// NewSecretResolver derives a 32-byte AES key from masterKey via
// HKDF-SHA256 (no salt; the process key itself is assumed to already be
// high-entropy, e.g. an env var holding 32 random bytes) and an
// application-specific info string, so a key compromised in one context
// can't be replayed against a different derivation domain.
func NewSecretResolver(masterKey []byte) (*SecretResolver, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("resolver: master key is empty")
	}
	derived := make([]byte, 32)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("surfari-go/credential-at-rest"))
	if _, err := fullRead(kdf, derived); err != nil {
		return nil, fmt.Errorf("resolver: derive key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("resolver: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("resolver: gcm: %w", err)
	}
	return &SecretResolver{gcm: gcm}, nil
}

func fullRead(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *SecretResolver) decrypt(ciphertext []byte) (string, error) {
	nonceSize := s.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("resolver: ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plain, err := s.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("resolver: decrypt: %w", err)
	}
	return string(plain), nil
}

// Encrypt seals a plaintext credential field for storage, the inverse of
// decrypt, exposed so the credential-storage layer can write rows this
// resolver can later read.
func (s *SecretResolver) Encrypt(plaintext string, nonce []byte) ([]byte, error) {
	if len(nonce) != s.gcm.NonceSize() {
		return nil, fmt.Errorf("resolver: nonce must be %d bytes, got %d", s.gcm.NonceSize(), len(nonce))
	}
	sealed := s.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return append(append([]byte{}, nonce...), sealed...), nil
}

// ResolveCredential returns the decrypted username/password for cred if
// currentURL's registrable domain matches cred.URL's, per spec.md §4.6
// stage 2. A domain mismatch is not an error — it just means this
// credential doesn't apply to the current page.
func (s *SecretResolver) ResolveCredential(cred models.SiteCredential, currentURL string) (matches bool, username, password string, err error) {
	match, err := sameRegistrableDomain(cred.URL, currentURL)
	if err != nil || !match {
		return false, "", "", err
	}

	username, err = s.decrypt(cred.UsernameEnc)
	if err != nil {
		return true, "", "", err
	}
	password, err = s.decrypt(cred.PasswordEnc)
	if err != nil {
		return true, "", "", err
	}
	return true, username, password, nil
}

// Resolve implements Resolver for the placeholder names this stage
// understands ("UsernameAssistant", "PasswordAssistant"); any other
// placeholder text is not this resolver's concern and falls through.
func (s *SecretResolver) Resolve(_ context.Context, text string, rctx Context, cred *models.SiteCredential) (string, bool, error) {
	if cred == nil {
		return "", false, nil
	}
	switch text {
	case "UsernameAssistant", "PasswordAssistant":
	default:
		return "", false, nil
	}

	matches, username, password, err := s.ResolveCredential(*cred, rctx.CurrentURL)
	if err != nil {
		return "", false, err
	}
	if !matches {
		return "", false, nil
	}
	if text == "UsernameAssistant" {
		return username, true, nil
	}
	return password, true, nil
}

func sameRegistrableDomain(a, b string) (bool, error) {
	hostA, err := registrableDomain(a)
	if err != nil {
		return false, nil
	}
	hostB, err := registrableDomain(b)
	if err != nil {
		return false, nil
	}
	return hostA == hostB && hostA != "", nil
}

func registrableDomain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		// raw may be a bare host with no scheme.
		u, err = url.Parse("//" + raw)
		if err != nil {
			return "", err
		}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("resolver: no host in %q", raw)
	}
	reg, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// localhost and bare IPs have no public suffix; compare the
		// host itself rather than failing closed.
		return host, nil
	}
	return reg, nil
}
