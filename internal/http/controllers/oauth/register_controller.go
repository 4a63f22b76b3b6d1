package oauth

import (
	"encoding/json"
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/mcpbridge/internal/http/dto/oauth"
	httperrors "github.com/dropDatabas3/mcpbridge/internal/http/errors"
	svc "github.com/dropDatabas3/mcpbridge/internal/http/services/oauth"
	"github.com/dropDatabas3/mcpbridge/internal/observability/logger"
)

// RegisterController handles POST /register (Dynamic Client Registration).
type RegisterController struct {
	service *svc.RegisterService
}

// NewRegisterController creates the controller.
func NewRegisterController(s *svc.RegisterService) *RegisterController {
	return &RegisterController{service: s}
}

// Register handles POST /register.
func (c *RegisterController) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RegisterController.Register"))

	var body dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, "malformed JSON body")
		return
	}

	client, err := c.service.Register(ctx, svc.RegisterRequest{
		RedirectURIs:            body.RedirectURIs,
		ClientName:              body.ClientName,
		GrantTypes:              body.GrantTypes,
		ResponseTypes:           body.ResponseTypes,
		TokenEndpointAuthMethod: body.TokenEndpointAuthMethod,
	})
	if err != nil {
		if errors.Is(err, svc.ErrInvalidRequest) {
			httperrors.WriteOAuthError(w, http.StatusBadRequest, httperrors.CodeInvalidRequest, err.Error())
			return
		}
		log.Error("registration failed", logger.Err(err))
		httperrors.WriteOAuthError(w, http.StatusInternalServerError, httperrors.CodeServerError, "registration failed")
		return
	}

	httperrors.WriteJSON(w, http.StatusCreated, dto.RegisterResponse{
		ClientID:                client.ClientID,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientName:              client.ClientName,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
	})
}
