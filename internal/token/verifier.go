package token

import (
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/middleware/auth"
)

// PrincipalVerifier adapts the token service to the authentication
// middleware's verifier contract.
func PrincipalVerifier(svc *Service) auth.VerifierFunc {
	return func(raw string) (auth.Principal, error) {
		claims, err := svc.Verify(raw)
		if err != nil {
			return auth.Principal{}, err
		}

		userID, err := domain.ParseUserID(claims.UserID)
		if err != nil {
			return auth.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
		}

		return auth.Principal{
			UserID: userID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}
}
