package trade

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/middleware"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/offer"
	"github.com/swapdeck/swapdeck-api/internal/services/respond"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	lifecycle "github.com/swapdeck/swapdeck-api/internal/trade"
	"github.com/swapdeck/swapdeck-api/internal/utils"
)

// TradeService exposes the trade lifecycle over HTTP.
type TradeService struct {
	store      *storage.Store
	manager    *lifecycle.Manager
	limits     offer.Limits
	jwtService *utils.JWTService
}

// NewTradeService creates a TradeService.
func NewTradeService(store *storage.Store, manager *lifecycle.Manager, limits offer.Limits, jwtService *utils.JWTService) *TradeService {
	return &TradeService{
		store:      store,
		manager:    manager,
		limits:     limits,
		jwtService: jwtService,
	}
}

type offerLineRequest struct {
	Type          string           `json:"type"`
	ListingID     string           `json:"listing_id,omitempty"`
	DeclaredValue models.Money     `json:"declared_value,omitempty"`
	Amount        models.Money     `json:"amount,omitempty"`
	Description   string           `json:"description,omitempty"`
	Hours         *decimal.Decimal `json:"hours,omitempty"`
}

func (r offerLineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required,
			validation.In(string(models.LineKindListing), string(models.LineKindCash), string(models.LineKindService))),
		validation.Field(&r.ListingID,
			validation.When(r.Type == string(models.LineKindListing), validation.Required, is.UUID),
		),
	)
}

type createTradeRequest struct {
	TargetListingID string             `json:"target_listing_id"`
	Message         string             `json:"message"`
	Lines           []offerLineRequest `json:"lines"`
}

func (r createTradeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetListingID, validation.Required, is.UUID),
		validation.Field(&r.Message, validation.Length(0, 1000)),
		validation.Field(&r.Lines, validation.Required, validation.Length(1, 20)),
	)
}

// CreateTrade proposes a trade against another user's listing.
func (s *TradeService) CreateTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req createTradeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	targetListingID, err := uuid.Parse(req.TargetListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid target listing ID"})
	}

	composer := offer.NewComposer(userID, s.limits)
	for _, line := range req.Lines {
		switch models.LineKind(line.Type) {
		case models.LineKindListing:
			listingID, err := uuid.Parse(line.ListingID)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid offered listing ID"})
			}
			if err := composer.AddListingLine(listingID, userID, line.DeclaredValue); err != nil {
				return respond.Error(c, err)
			}
		case models.LineKindCash:
			if err := composer.AddCashLine(line.Amount); err != nil {
				return respond.Error(c, err)
			}
		case models.LineKindService:
			hours := decimal.Zero
			if line.Hours != nil {
				hours = *line.Hours
			}
			if err := composer.AddServiceLine(line.Description, hours); err != nil {
				return respond.Error(c, err)
			}
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown offer line type"})
		}
	}

	tradeOffer, err := composer.Finalize()
	if err != nil {
		return respond.Error(c, err)
	}

	target, err := s.store.GetListing(c.Context(), targetListingID)
	if err != nil {
		return respond.Error(c, err)
	}

	result, err := s.manager.Propose(c.Context(), lifecycle.ProposeParams{
		ProposerID:      userID,
		ReceiverID:      target.UserID,
		TargetListingID: targetListingID,
		Offer:           tradeOffer,
		Message:         req.Message,
	})
	if err != nil {
		return respond.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"trade":   result.Trade,
		"verdict": result.Verdict,
	})
}

// GetTrades returns the user's trades, optionally filtered by direction and
// status.
func (s *TradeService) GetTrades(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	filter := storage.TradeFilter{
		Direction: c.Query("direction"),
		Status:    models.TradeStatus(c.Query("status")),
		Limit:     fiber.Query[int](c, "limit"),
		Offset:    fiber.Query[int](c, "offset"),
	}

	if filter.Direction != "" && filter.Direction != "incoming" && filter.Direction != "outgoing" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direction must be incoming or outgoing"})
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown trade status"})
	}

	trades, err := s.store.ListTrades(c.Context(), userID, filter)
	if err != nil {
		return respond.Error(c, err)
	}

	for i := range trades {
		s.enrichTrade(c, &trades[i])
	}

	return c.JSON(fiber.Map{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetTrade returns one trade. Only the two participants may read it; the
// completion code is included while the trade is accepted.
func (s *TradeService) GetTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID"})
	}

	t, err := s.manager.Get(c.Context(), tradeID, userID)
	if err != nil {
		return respond.Error(c, err)
	}
	s.enrichTrade(c, t)

	response := fiber.Map{"trade": t}
	if t.Status == models.TradeStatusAccepted {
		response["completion_code"] = t.CompletionCode
	}
	return c.JSON(response)
}

type acceptTradeRequest struct {
	MeetingLocation *string    `json:"meeting_location,omitempty"`
	MeetingTime     *time.Time `json:"meeting_time,omitempty"`
}

// AcceptTrade moves a pending trade to accepted and returns the completion
// code both parties will need at the handover.
func (s *TradeService) AcceptTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID"})
	}

	var req acceptTradeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	t, err := s.manager.Accept(c.Context(), tradeID, userID, req.MeetingLocation, req.MeetingTime)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"trade":           t,
		"completion_code": t.CompletionCode,
	})
}

type rejectTradeRequest struct {
	Reason string `json:"reason"`
}

func (r rejectTradeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

// RejectTrade declines a pending trade. A reason is required.
func (s *TradeService) RejectTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID"})
	}

	var req rejectTradeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	t, err := s.manager.Reject(c.Context(), tradeID, userID, req.Reason)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"trade": t})
}

// CancelTrade withdraws a trade. Pending trades can only be cancelled by the
// proposer; accepted trades by either side.
func (s *TradeService) CancelTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID"})
	}

	t, err := s.manager.Cancel(c.Context(), tradeID, userID)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"trade": t})
}

type completeTradeRequest struct {
	Code string `json:"code"`
}

func (r completeTradeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, 16)),
	)
}

// CompleteTrade finishes an accepted trade when the supplied completion code
// matches.
func (s *TradeService) CompleteTrade(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade ID"})
	}

	var req completeTradeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	t, err := s.manager.Complete(c.Context(), tradeID, userID, req.Code)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"trade": t})
}

// enrichTrade attaches the target listing and the participant profiles for
// the API payload. Enrichment is best effort; a listing deleted after the
// trade closed does not fail the request.
func (s *TradeService) enrichTrade(c fiber.Ctx, t *models.Trade) {
	if listing, err := s.store.GetListing(c.Context(), t.TargetListingID); err == nil {
		t.TargetListing = listing
	} else if !apperror.Is(err, apperror.CodeNotFound) {
		return
	}
	if proposer, err := s.store.GetUser(c.Context(), t.ProposerID); err == nil {
		t.Proposer = proposer
	}
	if receiver, err := s.store.GetUser(c.Context(), t.ReceiverID); err == nil {
		t.Receiver = receiver
	}
}
