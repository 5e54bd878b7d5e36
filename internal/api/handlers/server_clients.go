package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/api/middleware"
	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/repository"
	"supportportal.io/portal/internal/usecase"
)

// clientJSON renders a client with every field key flat, slot 2 uplink keys
// included, plus the derived addresses.
func clientJSON(c *domain.Client) gin.H {
	out := gin.H{
		"id":            c.ID,
		"is_draft":      c.IsDraft,
		"created_by_id": c.CreatedByID,
		"created_at":    c.CreatedAt,
		"updated_at":    c.UpdatedAt,
		"display_name":  c.DisplayName(),
		"full_name":     c.FullName(),
		"mikrotik_ip":   c.MikrotikIP(),
		"server_ip":     c.ServerIP(),
	}
	for _, key := range domain.ClientFieldKeys() {
		v, _ := c.FieldValue(key)
		out[key] = v
	}
	return out
}

// canSeeClient reports whether the caller may read c. Without
// can_view_all_clients users only see the cards they created.
func canSeeClient(ctx context.Context, c *domain.Client) bool {
	if middleware.HasPermission(ctx, domain.PermViewAllClients) {
		return true
	}
	return c.CreatedByID != nil && *c.CreatedByID == middleware.GetUserID(ctx)
}

// visibleClient loads a client the caller may read. Hidden clients are
// reported as missing.
func (s *Server) visibleClient(c *gin.Context, id int64) (*domain.Client, bool) {
	ctx := c.Request.Context()
	client, err := s.queries.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = c.Error(apperrors.ErrClientNotFoundf(id))
		} else {
			_ = c.Error(persistence(err))
		}
		return nil, false
	}
	if !canSeeClient(ctx, client) {
		_ = c.Error(apperrors.ErrClientNotFoundf(id))
		return nil, false
	}
	return client, true
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.ErrInvalidRequestf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// ListClients handles GET /api/clients.
func (s *Server) ListClients(c *gin.Context) {
	ctx := c.Request.Context()
	filter := domain.ClientListFilter{
		Status:   domain.ClientStatus(c.Query("status")),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		_ = c.Error(apperrors.ErrInvalidRequestf("unknown status %q", filter.Status))
		return
	}
	if !repository.ClientOrderingValid(filter.Ordering) {
		_ = c.Error(apperrors.ErrInvalidRequestf("unsupported ordering %q", filter.Ordering))
		return
	}
	if p := c.Query("provider"); p != "" {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			_ = c.Error(apperrors.ErrInvalidRequestf("provider must be an integer"))
			return
		}
		filter.ProviderID = &id
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		_ = c.Error(err)
		return
	}
	if !middleware.HasPermission(ctx, domain.PermViewAllClients) {
		filter.CreatedByID = middleware.ActorID(ctx)
	}

	list, err := s.queries.ListClients(ctx, filter)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	items := make([]gin.H, 0, len(list.Items))
	for _, client := range list.Items {
		items = append(items, clientJSON(client))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total_count": list.TotalCount})
}

// GetClient handles GET /api/clients/:id. The card comes with its custom
// field values and registered fiscal registers.
func (s *Server) GetClient(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	client, ok := s.visibleClient(c, id)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	custom, err := s.queries.ListCustomFieldValues(ctx, id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	kkt, err := s.queries.ListKKT(ctx, id)
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if custom == nil {
		custom = []domain.CustomFieldValue{}
	}
	if kkt == nil {
		kkt = []*domain.KKTData{}
	}

	out := clientJSON(client)
	out["custom_fields"] = custom
	out["kkt"] = kkt
	c.JSON(http.StatusOK, out)
}

// readClientPatch decodes a card submission. Numbers stay json.Number so ids
// survive intact; the nested "custom_fields" object is split off and keyed
// by definition id.
func readClientPatch(c *gin.Context) (map[string]any, map[int64]string, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var patch map[string]any
	if err := dec.Decode(&patch); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body", http.StatusBadRequest)
	}
	if patch == nil {
		return nil, nil, apperrors.ErrInvalidRequestf("request body must be a JSON object")
	}

	raw, ok := patch["custom_fields"]
	if !ok {
		return patch, nil, nil
	}
	delete(patch, "custom_fields")
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, apperrors.ErrInvalidRequestf("custom_fields must be an object")
	}
	values := make(map[int64]string, len(obj))
	for k, v := range obj {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil || id <= 0 {
			return nil, nil, apperrors.ErrInvalidRequestf("custom field id %q is not valid", k)
		}
		switch t := v.(type) {
		case nil:
			values[id] = ""
		case string:
			values[id] = t
		case json.Number, bool:
			values[id] = fmt.Sprint(t)
		default:
			return nil, nil, apperrors.ErrInvalidRequestf("custom field %d must be text", id)
		}
	}
	return patch, values, nil
}

// CreateClient handles POST /api/clients.
func (s *Server) CreateClient(c *gin.Context) {
	s.createClient(c, false)
}

// CreateDraft handles POST /api/clients/draft. Drafts carry attachments
// before the card is complete and stay out of lists until finalised.
func (s *Server) CreateDraft(c *gin.Context) {
	s.createClient(c, true)
}

func (s *Server) createClient(c *gin.Context, draft bool) {
	patch, custom, err := readClientPatch(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	client, err := s.createClientUC.Execute(ctx, usecase.CreateClientInput{
		ActorID:      middleware.ActorID(ctx),
		Patch:        patch,
		CustomValues: custom,
		Draft:        draft,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, clientJSON(client))
}

// DiscardDraft handles DELETE /api/clients/:id/draft.
func (s *Server) DiscardDraft(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	if err := s.createClientUC.DiscardDraft(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateClient handles PATCH and PUT /api/clients/:id. Both are partial:
// absent keys keep their stored value and never appear in the change log.
func (s *Server) UpdateClient(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	patch, custom, err := readClientPatch(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	out, err := s.updateClientUC.Execute(ctx, usecase.UpdateClientInput{
		ClientID:     id,
		ActorID:      middleware.ActorID(ctx),
		Patch:        patch,
		CustomValues: custom,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	changes := out.Changes
	if changes == nil {
		changes = []changelog.ChangeDescription{}
	}
	body := clientJSON(out.Client)
	body["activity"] = out.Action
	body["changes"] = changes
	c.JSON(http.StatusOK, body)
}

// DeleteClient handles DELETE /api/clients/:id.
func (s *Server) DeleteClient(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.deleteClientUC.Execute(ctx, id, middleware.ActorID(ctx), actorFromCtx(ctx)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transferRequest struct {
	DestinationID   int64 `json:"destination_id" binding:"required"`
	SourceSlot      int   `json:"source_slot"`
	DestinationSlot int   `json:"destination_slot"`
}

// TransferUplink handles POST /api/clients/:id/transfer. Slots default to 1.
// Both cards must be visible to the caller.
func (s *Server) TransferUplink(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req transferRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := s.visibleClient(c, id); !ok {
		return
	}
	if req.DestinationID != id {
		if _, ok := s.visibleClient(c, req.DestinationID); !ok {
			return
		}
	}
	if req.SourceSlot == 0 {
		req.SourceSlot = domain.SlotPrimary
	}
	if req.DestinationSlot == 0 {
		req.DestinationSlot = domain.SlotPrimary
	}

	ctx := c.Request.Context()
	out, err := s.transferUC.Execute(ctx, usecase.TransferInput{
		SourceID:   id,
		DestID:     req.DestinationID,
		SourceSlot: req.SourceSlot,
		DestSlot:   req.DestinationSlot,
		ActorID:    middleware.ActorID(ctx),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
