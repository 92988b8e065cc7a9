package graphql

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/graphql-go/graphql"

	"autohaus/internal/auth"
)

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves GraphQL over POST /graphql. Without a configured verifier
// every caller acts as a dev principal carrying all roles.
type Handler struct {
	schema   graphql.Schema
	verifier *auth.Verifier
}

// NewHandler wraps the schema into an http.Handler.
func NewHandler(schema graphql.Schema, verifier *auth.Verifier) *Handler {
	return &Handler{schema: schema, verifier: verifier}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid JSON body"})
		return
	}

	ctx := r.Context()
	if h.verifier == nil {
		ctx = auth.ContextWithPrincipal(ctx, auth.Principal{
			Subject: "dev",
			Roles:   []string{auth.RoleAdmin, auth.RoleKunde},
		})
	} else if token, ok := auth.BearerToken(r); ok {
		if principal, err := h.verifier.Verify(token); err == nil {
			ctx = auth.ContextWithPrincipal(ctx, principal)
		}
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        ctx,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
