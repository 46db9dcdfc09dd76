package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/leadline-crm/apps/api/internal/audit"
	"github.com/leadline-crm/apps/api/internal/httpx"
	"github.com/leadline-crm/apps/api/internal/middleware"
	"github.com/leadline-crm/apps/api/internal/store"
)

type propertyResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ExternalPropertyID *string    `json:"externalPropertyId,omitempty"`
	ExternalLeadID     *string    `json:"externalLeadId,omitempty"`
	APNParcelID        *string    `json:"apnParcelId,omitempty"`
	AddressLine1       string     `json:"addressLine1"`
	AddressLine2       *string    `json:"addressLine2,omitempty"`
	City               string     `json:"city"`
	State              string     `json:"state"`
	Zipcode            string     `json:"zipcode"`
	County             *string    `json:"county,omitempty"`
	SubdivisionName    *string    `json:"subdivisionName,omitempty"`
	Owner1Name         *string    `json:"owner1Name,omitempty"`
	Owner2Name         *string    `json:"owner2Name,omitempty"`
	OwnerLocation      *string    `json:"ownerLocation,omitempty"`
	EstimatedValue     *float64   `json:"estimatedValue,omitempty"`
	EquityAmount       *float64   `json:"equityAmount,omitempty"`
	EquityPercent      *int       `json:"equityPercent,omitempty"`
	MortgageAmount     *float64   `json:"mortgageAmount,omitempty"`
	TotalLoanBalance   *float64   `json:"totalLoanBalance,omitempty"`
	SalePrice          *float64   `json:"salePrice,omitempty"`
	SaleDate           *time.Time `json:"saleDate,omitempty"`
	TaxAmount          *float64   `json:"taxAmount,omitempty"`
	TaxYear            *int       `json:"taxYear,omitempty"`
	TaxDelinquent      *string    `json:"taxDelinquent,omitempty"`
	PropertyType       *string    `json:"propertyType,omitempty"`
	YearBuilt          *int       `json:"yearBuilt,omitempty"`
	TotalBedrooms      *float64   `json:"totalBedrooms,omitempty"`
	TotalBaths         *float64   `json:"totalBaths,omitempty"`
	BuildingSquareFeet *float64   `json:"buildingSquareFeet,omitempty"`
	MarketStatus       *string    `json:"marketStatus,omitempty"`
	Status             *string    `json:"status,omitempty"`
	ListName           *string    `json:"listName,omitempty"`
	LeadTemperature    string     `json:"leadTemperature"`
	DeskStatus         string     `json:"deskStatus"`
	DealStage          string     `json:"dealStage"`
	Source             string     `json:"source"`
	EntryDate          time.Time  `json:"entryDate"`
	StageChangedAt     time.Time  `json:"stageChangedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func mapProperty(p store.Property) propertyResponse {
	return propertyResponse{
		ID:                 p.ID,
		ExternalPropertyID: p.ExternalPropertyID,
		ExternalLeadID:     p.ExternalLeadID,
		APNParcelID:        p.APNParcelID,
		AddressLine1:       p.AddressLine1,
		AddressLine2:       p.AddressLine2,
		City:               p.City,
		State:              p.State,
		Zipcode:            p.Zipcode,
		County:             p.County,
		SubdivisionName:    p.SubdivisionName,
		Owner1Name:         p.Owner1Name,
		Owner2Name:         p.Owner2Name,
		OwnerLocation:      p.OwnerLocation,
		EstimatedValue:     p.EstimatedValue,
		EquityAmount:       p.EquityAmount,
		EquityPercent:      p.EquityPercent,
		MortgageAmount:     p.MortgageAmount,
		TotalLoanBalance:   p.TotalLoanBalance,
		SalePrice:          p.SalePrice,
		SaleDate:           p.SaleDate,
		TaxAmount:          p.TaxAmount,
		TaxYear:            p.TaxYear,
		TaxDelinquent:      p.TaxDelinquent,
		PropertyType:       p.PropertyType,
		YearBuilt:          p.YearBuilt,
		TotalBedrooms:      p.TotalBedrooms,
		TotalBaths:         p.TotalBaths,
		BuildingSquareFeet: p.BuildingSquareFeet,
		MarketStatus:       p.MarketStatus,
		Status:             p.Status,
		ListName:           p.ListName,
		LeadTemperature:    p.LeadTemperature,
		DeskStatus:         p.DeskStatus,
		DealStage:          p.DealStage,
		Source:             p.Source,
		EntryDate:          p.EntryDate,
		StageChangedAt:     p.StageChangedAt,
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

func (s *Server) GetProperties(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page := intQuery(r, "page", 1)
	pageSize := intQuery(r, "pageSize", 50)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	total, err := s.Store.CountProperties(r.Context(), query)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to count properties", nil)
		return
	}
	properties, err := s.Store.ListProperties(r.Context(), store.ListPropertiesParams{
		Query:  query,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to list properties", nil)
		return
	}

	items := make([]propertyResponse, 0, len(properties))
	for _, p := range properties {
		items = append(items, mapProperty(p))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

func (s *Server) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "propertyId")
	if !ok {
		return
	}

	property, err := s.Store.GetPropertyByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "property_not_found", "Property was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load property", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapProperty(property))
}

type phoneResponse struct {
	ID             uuid.UUID `json:"id"`
	PhoneNumber    string    `json:"phoneNumber"`
	PhoneType      *string   `json:"phoneType,omitempty"`
	Carrier        *string   `json:"carrier,omitempty"`
	DNC            *bool     `json:"dnc,omitempty"`
	Prepaid        *bool     `json:"prepaid,omitempty"`
	ActivityStatus *string   `json:"activityStatus,omitempty"`
	IsPrimary      bool      `json:"isPrimary"`
}

type emailResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	EmailType *string   `json:"emailType,omitempty"`
	IsPrimary bool      `json:"isPrimary"`
}

type addressResponse struct {
	ID           uuid.UUID `json:"id"`
	AddressLine1 string    `json:"addressLine1"`
	City         *string   `json:"city,omitempty"`
	State        *string   `json:"state,omitempty"`
	Zipcode      *string   `json:"zipcode,omitempty"`
	AddressType  *string   `json:"addressType,omitempty"`
	IsPrimary    bool      `json:"isPrimary"`
}

type socialProfileResponse struct {
	ID         uuid.UUID `json:"id"`
	Platform   string    `json:"platform"`
	ProfileURL string    `json:"profileUrl"`
}

type contactResponse struct {
	ID              uuid.UUID               `json:"id"`
	PropertyID      uuid.UUID               `json:"propertyId"`
	Name            string                  `json:"name"`
	Relationship    *string                 `json:"relationship,omitempty"`
	Age             *int                    `json:"age,omitempty"`
	Gender          *string                 `json:"gender,omitempty"`
	MaritalStatus   *string                 `json:"maritalStatus,omitempty"`
	NetAssetValue   *float64                `json:"netAssetValue,omitempty"`
	Flags           *string                 `json:"flags,omitempty"`
	IsDecisionMaker bool                    `json:"isDecisionMaker"`
	DNC             bool                    `json:"dnc"`
	IsLitigator     bool                    `json:"isLitigator"`
	Deceased        bool                    `json:"deceased"`
	Hidden          bool                    `json:"hidden"`
	Phones          []phoneResponse         `json:"phones"`
	Emails          []emailResponse         `json:"emails"`
	Addresses       []addressResponse       `json:"addresses"`
	SocialProfiles  []socialProfileResponse `json:"socialProfiles"`
}

func (s *Server) GetPropertyContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "propertyId")
	if !ok {
		return
	}

	if _, err := s.Store.GetPropertyByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "property_not_found", "Property was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load property", nil)
		return
	}

	contacts, err := s.Store.ListContactsByProperty(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contacts", nil)
		return
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		resp := contactResponse{
			ID:              c.ID,
			PropertyID:      c.PropertyID,
			Name:            c.Name,
			Relationship:    c.Relationship,
			Age:             c.Age,
			Gender:          c.Gender,
			MaritalStatus:   c.MaritalStatus,
			NetAssetValue:   c.NetAssetValue,
			Flags:           c.Flags,
			IsDecisionMaker: c.IsDecisionMaker,
			DNC:             c.DNC,
			IsLitigator:     c.IsLitigator,
			Deceased:        c.Deceased,
			Hidden:          c.Hidden,
		}
		phones, err := s.Store.ListContactPhones(r.Context(), c.ID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contact phones", nil)
			return
		}
		resp.Phones = make([]phoneResponse, 0, len(phones))
		for _, p := range phones {
			resp.Phones = append(resp.Phones, phoneResponse{
				ID: p.ID, PhoneNumber: p.PhoneNumber, PhoneType: p.PhoneType,
				Carrier: p.Carrier, DNC: p.DNC, Prepaid: p.Prepaid,
				ActivityStatus: p.ActivityStatus, IsPrimary: p.IsPrimary,
			})
		}

		emails, err := s.Store.ListContactEmails(r.Context(), c.ID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contact emails", nil)
			return
		}
		resp.Emails = make([]emailResponse, 0, len(emails))
		for _, e := range emails {
			resp.Emails = append(resp.Emails, emailResponse{ID: e.ID, Email: e.Email, EmailType: e.EmailType, IsPrimary: e.IsPrimary})
		}

		addresses, err := s.Store.ListContactAddresses(r.Context(), c.ID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contact addresses", nil)
			return
		}
		resp.Addresses = make([]addressResponse, 0, len(addresses))
		for _, a := range addresses {
			resp.Addresses = append(resp.Addresses, addressResponse{
				ID: a.ID, AddressLine1: a.AddressLine1, City: a.City, State: a.State,
				Zipcode: a.Zipcode, AddressType: a.AddressType, IsPrimary: a.IsPrimary,
			})
		}

		profiles, err := s.Store.ListContactSocialProfiles(r.Context(), c.ID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load contact profiles", nil)
			return
		}
		resp.SocialProfiles = make([]socialProfileResponse, 0, len(profiles))
		for _, sp := range profiles {
			resp.SocialProfiles = append(resp.SocialProfiles, socialProfileResponse{ID: sp.ID, Platform: sp.Platform, ProfileURL: sp.ProfileURL})
		}
		out = append(out, resp)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

type propertyPatchRequest struct {
	Owner1Name      *string `json:"owner1Name"`
	Owner2Name      *string `json:"owner2Name"`
	MarketStatus    *string `json:"marketStatus"`
	Status          *string `json:"status"`
	ListName        *string `json:"listName"`
	LeadTemperature *string `json:"leadTemperature"`
	DeskStatus      *string `json:"deskStatus"`
	DealStage       *string `json:"dealStage"`
}

func (s *Server) PatchProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "propertyId")
	if !ok {
		return
	}

	var req propertyPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}

	updated, err := s.Store.UpdatePropertyPatch(r.Context(), id, store.PropertyPatch{
		Owner1Name:      req.Owner1Name,
		Owner2Name:      req.Owner2Name,
		MarketStatus:    req.MarketStatus,
		Status:          req.Status,
		ListName:        req.ListName,
		LeadTemperature: req.LeadTemperature,
		DeskStatus:      req.DeskStatus,
		DealStage:       req.DealStage,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "property_not_found", "Property was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to update property", nil)
		return
	}

	s.auditAction(r, "properties.update", "property", &id, nil)
	httpx.WriteJSON(w, http.StatusOK, mapProperty(updated))
}

type mergeRequest struct {
	PrimaryID   uuid.UUID `json:"primaryId"`
	SecondaryID uuid.UUID `json:"secondaryId"`
	Reason      *string   `json:"reason,omitempty"`
}

// PostPropertiesMerge absorbs the secondary property into the primary:
// contacts move over where their name does not collide, a JSON snapshot of
// the secondary is recorded, and the secondary row is deleted. The whole
// operation is one transaction.
func (s *Server) PostPropertiesMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	if req.PrimaryID == uuid.Nil || req.SecondaryID == uuid.Nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "primaryId and secondaryId are required", nil)
		return
	}
	if req.PrimaryID == req.SecondaryID {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "A property cannot be merged into itself", nil)
		return
	}

	tx, err := s.DB.Begin(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to start merge", nil)
		return
	}
	defer tx.Rollback(r.Context())
	txStore := s.Store.WithTx(tx)

	primary, err := txStore.GetPropertyByID(r.Context(), req.PrimaryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "property_not_found", "Primary property was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load primary property", nil)
		return
	}
	secondary, err := txStore.GetPropertyByID(r.Context(), req.SecondaryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "property_not_found", "Secondary property was not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load secondary property", nil)
		return
	}

	snapshot, err := json.Marshal(mapProperty(secondary))
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to snapshot property", nil)
		return
	}

	if err := txStore.FoldContactChannels(r.Context(), secondary.ID, primary.ID); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to move contact channels", nil)
		return
	}
	moved, err := txStore.ReassignContacts(r.Context(), secondary.ID, primary.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to move contacts", nil)
		return
	}

	var mergedBy *uuid.UUID
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		if userID, err := uuid.Parse(actor.UserID); err == nil {
			mergedBy = &userID
		}
	}
	record, err := txStore.InsertMergeRecord(r.Context(), store.InsertMergeRecordParams{
		PrimaryPropertyID: primary.ID,
		MergedPropertyID:  secondary.ID,
		MergedBy:          mergedBy,
		Reason:            req.Reason,
		MergedSnapshot:    snapshot,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to record merge", nil)
		return
	}

	if err := txStore.DeleteProperty(r.Context(), secondary.ID); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to remove merged property", nil)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to commit merge", nil)
		return
	}

	primaryID := primary.ID
	s.auditAction(r, "properties.merge", "property", &primaryID, map[string]any{
		"mergedPropertyId": secondary.ID.String(),
		"contactsMoved":    moved,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"mergeId":       record.ID,
		"primaryId":     primary.ID,
		"mergedId":      secondary.ID,
		"contactsMoved": moved,
	})
}

func (s *Server) GetPropertyMergeHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "propertyId")
	if !ok {
		return
	}
	history, err := s.Store.ListMergeHistoryByProperty(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load merge history", nil)
		return
	}

	type mergeHistoryItem struct {
		ID                uuid.UUID       `json:"id"`
		PrimaryPropertyID uuid.UUID       `json:"primaryPropertyId"`
		MergedPropertyID  uuid.UUID       `json:"mergedPropertyId"`
		MergedBy          *uuid.UUID      `json:"mergedBy,omitempty"`
		Reason            *string         `json:"reason,omitempty"`
		MergedSnapshot    json.RawMessage `json:"mergedSnapshot"`
		CreatedAt         time.Time       `json:"createdAt"`
	}
	items := make([]mergeHistoryItem, 0, len(history))
	for _, rec := range history {
		items = append(items, mergeHistoryItem{
			ID:                rec.ID,
			PrimaryPropertyID: rec.PrimaryPropertyID,
			MergedPropertyID:  rec.MergedPropertyID,
			MergedBy:          rec.MergedBy,
			Reason:            rec.Reason,
			MergedSnapshot:    json.RawMessage(rec.MergedSnapshot),
			CreatedAt:         rec.CreatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// helpers shared by the property and import handlers

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_id", "Malformed id in path", nil)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Server) auditAction(r *http.Request, action, entityType string, entityID *uuid.UUID, metadata map[string]any) {
	var userID *uuid.UUID
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		if parsed, err := uuid.Parse(actor.UserID); err == nil {
			userID = &parsed
		}
	}
	_ = s.Audit.Log(r.Context(), audit.Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   metadata,
	})
}
