package tokens

import id "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain"

// Store key layout. Every key carries its own TTL.
const (
	sessionKeyPrefix       = "session:"        // SessionRecord JSON
	markerKeyPrefix        = "revoked:"        // RevocationMarker JSON
	familyKeyPrefix        = "family:"         // set of member jtis
	familyRevokedKeyPrefix = "family_revoked:" // present once the family is revoked
)

func sessionKey(jti id.TokenID) string {
	return sessionKeyPrefix + jti.String()
}

func markerKey(jti id.TokenID) string {
	return markerKeyPrefix + jti.String()
}

func familyKey(fid id.FamilyID) string {
	return familyKeyPrefix + fid.String()
}

func familyRevokedKey(fid id.FamilyID) string {
	return familyRevokedKeyPrefix + fid.String()
}
