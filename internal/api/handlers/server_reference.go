package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"supportportal.io/portal/internal/domain"
	apperrors "supportportal.io/portal/internal/pkg/errors"
)

type providerRequest struct {
	Name          string `json:"name" binding:"required"`
	SupportPhones string `json:"support_phones"`
}

// ListProviders handles GET /api/providers.
func (s *Server) ListProviders(c *gin.Context) {
	items, err := s.queries.ListProviders(c.Request.Context())
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if items == nil {
		items = []*domain.Provider{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetProvider handles GET /api/providers/:id.
func (s *Server) GetProvider(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := s.queries.GetProvider(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeProviderNotFound, "provider not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProvider handles POST /api/providers.
func (s *Server) CreateProvider(c *gin.Context) {
	var req providerRequest
	if !bindJSON(c, &req) {
		return
	}
	p := &domain.Provider{Name: strings.TrimSpace(req.Name), SupportPhones: strings.TrimSpace(req.SupportPhones)}
	if p.Name == "" {
		_ = c.Error(apperrors.ErrInvalidRequestf("provider name is required"))
		return
	}
	if err := s.queries.InsertProvider(c.Request.Context(), p); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProvider handles PUT /api/providers/:id.
func (s *Server) UpdateProvider(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req providerRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	p, err := s.queries.GetProvider(ctx, id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeProviderNotFound, "provider not found"))
		return
	}
	p.Name = strings.TrimSpace(req.Name)
	p.SupportPhones = strings.TrimSpace(req.SupportPhones)
	if p.Name == "" {
		_ = c.Error(apperrors.ErrInvalidRequestf("provider name is required"))
		return
	}
	if err := s.queries.UpdateProvider(ctx, p); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeProviderNotFound, "provider not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProvider handles DELETE /api/providers/:id. Clients referencing the
// provider keep their uplinks with the reference cleared.
func (s *Server) DeleteProvider(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.queries.DeleteProvider(ctx, id); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeProviderNotFound, "provider not found"))
		return
	}
	s.logAudit(ctx, "provider.delete", "provider", strconv.FormatInt(id, 10), nil)
	c.Status(http.StatusNoContent)
}

type customFieldRequest struct {
	Name       string                 `json:"name" binding:"required"`
	FieldType  domain.CustomFieldType `json:"field_type"`
	Options    []string               `json:"options"`
	IsRequired bool                   `json:"is_required"`
	Order      int                    `json:"order"`
	IsActive   *bool                  `json:"is_active"`
}

// definition validates the request and builds the definition it describes.
func (r customFieldRequest) definition() (*domain.CustomFieldDefinition, error) {
	d := &domain.CustomFieldDefinition{
		Name:       strings.TrimSpace(r.Name),
		FieldType:  r.FieldType,
		IsRequired: r.IsRequired,
		Order:      r.Order,
		IsActive:   r.IsActive == nil || *r.IsActive,
	}
	if d.Name == "" {
		return nil, apperrors.ErrInvalidRequestf("custom field name is required")
	}
	if d.FieldType == "" {
		d.FieldType = domain.CustomFieldText
	}
	switch d.FieldType {
	case domain.CustomFieldText:
		d.Options = []string{}
	case domain.CustomFieldSelect:
		for _, o := range r.Options {
			if o = strings.TrimSpace(o); o != "" {
				d.Options = append(d.Options, o)
			}
		}
		if len(d.Options) == 0 {
			return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "select fields need at least one option").
				WithParams(map[string]interface{}{"field": "options"})
		}
	default:
		return nil, apperrors.ErrInvalidRequestf("unknown field type %q", d.FieldType)
	}
	return d, nil
}

// ListCustomFields handles GET /api/custom-fields. ?active=true hides
// retired definitions.
func (s *Server) ListCustomFields(c *gin.Context) {
	items, err := s.queries.ListCustomFields(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	if items == nil {
		items = []*domain.CustomFieldDefinition{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateCustomField handles POST /api/custom-fields.
func (s *Server) CreateCustomField(c *gin.Context) {
	var req customFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := req.definition()
	if err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	if err := s.queries.InsertCustomField(ctx, d); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	s.logAudit(ctx, "custom_field.create", "custom_field", strconv.FormatInt(d.ID, 10),
		map[string]any{"name": d.Name})
	c.JSON(http.StatusCreated, d)
}

// UpdateCustomField handles PUT /api/custom-fields/:id.
func (s *Server) UpdateCustomField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req customFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := req.definition()
	if err != nil {
		_ = c.Error(err)
		return
	}
	d.ID = id
	ctx := c.Request.Context()
	if err := s.queries.UpdateCustomField(ctx, d); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeCustomFieldNotFound, "custom field not found"))
		return
	}
	s.logAudit(ctx, "custom_field.update", "custom_field", strconv.FormatInt(id, 10),
		map[string]any{"name": d.Name, "is_active": d.IsActive})
	c.JSON(http.StatusOK, d)
}

// DeleteCustomField handles DELETE /api/custom-fields/:id. Stored values go
// with the definition.
func (s *Server) DeleteCustomField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.queries.DeleteCustomField(ctx, id); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeCustomFieldNotFound, "custom field not found"))
		return
	}
	s.logAudit(ctx, "custom_field.delete", "custom_field", strconv.FormatInt(id, 10), nil)
	c.Status(http.StatusNoContent)
}

// ofdCompanyJSON never includes the token, only whether one is stored.
func ofdCompanyJSON(o *domain.OFDCompany) gin.H {
	return gin.H{
		"id":         o.ID,
		"name":       o.Name,
		"inn":        o.INN,
		"has_token":  o.HasToken(),
		"created_at": o.CreatedAt,
		"updated_at": o.UpdatedAt,
	}
}

type ofdCompanyRequest struct {
	Name string `json:"name" binding:"required"`
	INN  string `json:"inn"`
	// Token is sealed before storage. Absent keeps the stored token, "" clears it.
	Token *string `json:"token"`
}

// ListOFDCompanies handles GET /api/ofd-companies.
func (s *Server) ListOFDCompanies(c *gin.Context) {
	items, err := s.queries.ListOFDCompanies(c.Request.Context())
	if err != nil {
		_ = c.Error(persistence(err))
		return
	}
	out := make([]gin.H, 0, len(items))
	for _, o := range items {
		out = append(out, ofdCompanyJSON(o))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// CreateOFDCompany handles POST /api/ofd-companies.
func (s *Server) CreateOFDCompany(c *gin.Context) {
	var req ofdCompanyRequest
	if !bindJSON(c, &req) {
		return
	}
	o := &domain.OFDCompany{Name: strings.TrimSpace(req.Name), INN: strings.TrimSpace(req.INN)}
	if err := s.sealOFDToken(o, req.Token); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	if err := s.queries.InsertOFDCompany(ctx, o); err != nil {
		_ = c.Error(persistence(err))
		return
	}
	s.logAudit(ctx, "ofd_company.create", "ofd_company", strconv.FormatInt(o.ID, 10),
		map[string]any{"name": o.Name, "has_token": o.HasToken()})
	c.JSON(http.StatusCreated, ofdCompanyJSON(o))
}

// UpdateOFDCompany handles PUT /api/ofd-companies/:id.
func (s *Server) UpdateOFDCompany(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ofdCompanyRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	o, err := s.queries.GetOFDCompany(ctx, id)
	if err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeOFDCompanyNotFound, "OFD company not found"))
		return
	}
	o.Name = strings.TrimSpace(req.Name)
	o.INN = strings.TrimSpace(req.INN)
	if err := s.sealOFDToken(o, req.Token); err != nil {
		_ = c.Error(err)
		return
	}
	if err := s.queries.UpdateOFDCompany(ctx, o); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeOFDCompanyNotFound, "OFD company not found"))
		return
	}
	s.logAudit(ctx, "ofd_company.update", "ofd_company", strconv.FormatInt(id, 10),
		map[string]any{"name": o.Name, "token_changed": req.Token != nil})
	c.JSON(http.StatusOK, ofdCompanyJSON(o))
}

// DeleteOFDCompany handles DELETE /api/ofd-companies/:id.
func (s *Server) DeleteOFDCompany(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.queries.DeleteOFDCompany(ctx, id); err != nil {
		_ = c.Error(notFoundAs(err, apperrors.CodeOFDCompanyNotFound, "OFD company not found"))
		return
	}
	s.logAudit(ctx, "ofd_company.delete", "ofd_company", strconv.FormatInt(id, 10), nil)
	c.Status(http.StatusNoContent)
}

func (s *Server) sealOFDToken(o *domain.OFDCompany, token *string) error {
	if o.Name == "" {
		return apperrors.ErrInvalidRequestf("company name is required")
	}
	if token == nil || *token == domain.PasswordMask {
		return nil
	}
	sealed, err := s.box.Seal(strings.TrimSpace(*token))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "could not seal token", http.StatusInternalServerError)
	}
	o.SealedToken = sealed
	return nil
}
