package models

// SiteCredential is a site's stored login, encrypted at rest. It is
// decrypted only on demand via the process key (§6 of the value resolver
// chain design).
type SiteCredential struct {
	SiteID      int64
	SiteName    string
	URL         string
	UsernameEnc []byte
	PasswordEnc []byte
}
