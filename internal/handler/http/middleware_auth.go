package http

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tlxue/everclaw/internal/logger"
	"github.com/tlxue/everclaw/internal/service"
	"github.com/tlxue/everclaw/internal/utils"
)

const bearerPrefix = "Bearer "

// auth is an HTTP middleware that enforces bearer-credential authentication.
//
// It extracts the credential from the "Authorization" header, resolves it via
// [service.RegistryService.Resolve] and, on success, stores the resulting
// [models.VaultIdentity] in the request context under [utils.VaultCtxKey].
// The request-scoped logger is enriched with the vault ID.
//
// A missing or malformed header is answered with the INVALID_API_KEY
// envelope and status 401; resolution failures are rendered by [writeError].
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		credential, err := getCredentialFromAuthHeader(r.Header.Get("Authorization"))
		if err != nil {
			log.Debug().Err(err).Str("func", "*Handler.auth").Send()
			writeError(w, r, service.MissingCredentialError())
			return
		}

		ctx := r.Context()
		vault, err := h.services.RegistryService.Resolve(ctx, credential)
		if err != nil {
			writeError(w, r, err)
			return
		}

		l := log.GetChildLogger()
		l.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("vault_id", vault.VaultID)
		})
		ctx = utils.WithVault(l.WithContext(ctx), vault)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getCredentialFromAuthHeader extracts the credential from a raw
// "Authorization" header value of the form
//
//	Authorization: Bearer ec-0123...
//
// Everything after the "Bearer " prefix is the credential. It returns
// [ErrEmptyAuthorizationHeader], [ErrInvalidAuthorizationHeader] or
// [ErrEmptyToken].
func getCredentialFromAuthHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrEmptyAuthorizationHeader
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthorizationHeader
	}

	credential := authHeader[len(bearerPrefix):]
	if credential == "" {
		return "", ErrEmptyToken
	}

	return credential, nil
}
