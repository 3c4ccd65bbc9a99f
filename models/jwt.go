package models

// AccountJWT carries the claims vidserve accepts from the external auth
// issuer. Subject identifies the owning principal on every record.
type AccountJWT struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
