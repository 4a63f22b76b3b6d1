package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mcpbridge/internal/metrics"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
	tokens "github.com/dropDatabas3/mcpbridge/internal/security/token"
	"github.com/dropDatabas3/mcpbridge/internal/store/core"
	"github.com/dropDatabas3/mcpbridge/internal/validation"
)

// RegisterRequest es el body de Dynamic Client Registration (RFC 7591).
type RegisterRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
}

// RegisterService implementa Dynamic Client Registration.
// El endpoint no exige autenticación: los clientes son públicos.
type RegisterService struct {
	repo  core.ClientRepository
	clock func() time.Time
}

// Register valida el request, genera un client_id fresco y persiste el registro.
func (s *RegisterService) Register(ctx context.Context, req RegisterRequest) (*core.Client, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.register"))

	if err := validation.ValidateRedirectURIs(req.RedirectURIs); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	clientID, err := tokens.NewClientID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate client_id", ErrStorage)
	}

	grantTypes := req.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = core.DefaultGrantTypes
	}
	responseTypes := req.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = core.DefaultResponseTypes
	}
	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = core.DefaultTokenEndpointAuthMethod
	}

	client := &core.Client{
		ID:                      uuid.NewString(),
		ClientID:                clientID,
		ClientName:              req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		TokenEndpointAuthMethod: authMethod,
		CreatedAt:               s.clock().UTC(),
	}

	if err := s.repo.CreateClient(ctx, client); err != nil {
		log.Error("create client failed", logger.Err(err))
		return nil, ErrStorage
	}

	metrics.ClientsRegistered.Inc()
	log.Info("client registered",
		logger.ClientID(client.ClientID),
		logger.Count(len(client.RedirectURIs)),
	)
	return client, nil
}
