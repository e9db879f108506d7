package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wildsats-api/internal/middleware"
	"wildsats-api/internal/service"
	"wildsats-api/pkg/apierror"
	"wildsats-api/pkg/response"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// PlayerHandler handles player state HTTP requests.
type PlayerHandler struct {
	players *service.PlayerService
	errs    errorWriter
}

// NewPlayerHandler creates a new player handler. production hides internal error
// messages from clients.
func NewPlayerHandler(players *service.PlayerService, logger *slog.Logger, production bool) *PlayerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlayerHandler{
		players: players,
		errs:    errorWriter{logger: logger.With("component", "player_handler"), production: production},
	}
}

// loginRequest accepts the current field names and the legacy nostrName/npub pair.
type loginRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	NostrName   string `json:"nostrName"`
	Npub        string `json:"npub"`
}

func (l loginRequest) input() service.LoginInput {
	in := service.LoginInput{Identity: l.Identity, DisplayName: l.DisplayName}
	if in.Identity == "" {
		in.Identity = l.Npub
	}
	if in.DisplayName == "" {
		in.DisplayName = l.NostrName
	}
	return in
}

// Login handles POST /users
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := req.input()
	if !h.authorize(w, r, in.Identity) {
		return
	}

	record, err := h.players.Login(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	response.OK(w, record)
}

// GetPlayer handles GET /users/{identity}
func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	record, err := h.players.GetPlayer(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	response.OK(w, record)
}

// ListCharacters handles GET /users/{identity}/characters
func (h *PlayerHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.players.ListCharacters(r.Context(), chi.URLParam(r, "identity"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	response.OK(w, map[string]any{"characters": characters})
}

// AddCharacter handles POST /users/{identity}/characters
func (h *PlayerHandler) AddCharacter(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	var req struct {
		Character string `json:"character"`
	}
	if !h.decode(w, r, &req) || !h.authorize(w, r, identity) {
		return
	}

	record, added, err := h.players.AddCharacter(r.Context(), identity, req.Character)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"message":    "Character added",
		"characters": record.Characters,
		"added":      added,
	})
}

// AddInventoryItem handles POST /users/{identity}/inventory
func (h *PlayerHandler) AddInventoryItem(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	var req struct {
		Item string `json:"item"`
	}
	if !h.decode(w, r, &req) || !h.authorize(w, r, identity) {
		return
	}

	record, err := h.players.AddInventoryItem(r.Context(), identity, req.Item)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"message":   "Item added to inventory",
		"inventory": record.Inventory,
	})
}

// BuyAnimal handles POST /users/{identity}/buy-animal
func (h *PlayerHandler) BuyAnimal(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	var req struct {
		Animal string `json:"animal"`
	}
	if !h.decode(w, r, &req) || !h.authorize(w, r, identity) {
		return
	}

	result, err := h.players.PurchaseCharacter(r.Context(), identity, req.Animal)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	message := "Animal added to characters"
	if result.AlreadyOwned {
		message = "Animal already owned"
	}
	response.OK(w, map[string]any{
		"message":      message,
		"character":    result.Character,
		"characters":   result.Characters,
		"alreadyOwned": result.AlreadyOwned,
	})
}

// BuyAnimalFallback answers unsupported methods on the purchase route with a
// description of what was requested.
func (h *PlayerHandler) BuyAnimalFallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	response.Error(w, apierror.MethodNotAllowed(
		"The requested endpoint does not exist or the HTTP method is not supported.",
	).WithExtra(map[string]string{
		"requestedMethod": r.Method,
		"requestedUrl":    r.URL.RequestURI(),
	}))
}

// Catalog handles GET /catalog
func (h *PlayerHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{"animals": h.players.Catalog().Animals()})
}

// Test handles GET /test
func (h *PlayerHandler) Test(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"message": "Server is working"})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (h *PlayerHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(w, apierror.BadRequest("request body too large"))
		case errors.Is(err, io.EOF):
			response.Error(w, apierror.BadRequest("request body is required"))
		default:
			response.Error(w, apierror.BadRequest("invalid JSON"))
		}
		return false
	}
	return true
}

// authorize rejects writes signed by a key other than the target identity.
// Requests without a verified key are left to the auth middleware policy.
func (h *PlayerHandler) authorize(w http.ResponseWriter, r *http.Request, identity string) bool {
	pubkey, ok := middleware.PubkeyFromContext(r.Context())
	if !ok || service.SameIdentity(pubkey, identity) {
		return true
	}
	response.Error(w, apierror.Forbidden("authorization key does not match identity"))
	return false
}
