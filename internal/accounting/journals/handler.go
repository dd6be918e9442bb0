package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-moto/meridian-erp/internal/accounting/shared"
	"github.com/meridian-moto/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-moto/meridian-erp/internal/shared"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/reverse", h.Reverse)
	// Mutation endpoints exist solely to answer with the immutability error.
	r.Put("/{id}", h.rejectMutation)
	r.Patch("/{id}", h.rejectMutation)
	r.Delete("/{id}", h.rejectMutation)
}

type postingLineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type postJournalRequest struct {
	Date          string               `json:"date" validate:"required"`
	ReferenceKind string               `json:"reference_kind" validate:"required"`
	ReferenceID   uuid.UUID            `json:"reference_id" validate:"required"`
	Description   string               `json:"description"`
	CreatedBy     int64                `json:"created_by" validate:"required"`
	Lines         []postingLineRequest `json:"lines" validate:"required,min=2"`
}

type journalLineView struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type journalView struct {
	ID          int64             `json:"id"`
	Date        string            `json:"date"`
	Reference   string            `json:"reference"`
	Description string            `json:"description"`
	CreatedBy   int64             `json:"created_by"`
	PostedAt    time.Time         `json:"posted_at"`
	Lines       []journalLineView `json:"lines,omitempty"`
}

func toView(j Journal) journalView {
	view := journalView{
		ID:          j.ID,
		Date:        j.Date.Format("2006-01-02"),
		Reference:   j.Reference.String(),
		Description: j.Description,
		CreatedBy:   j.CreatedBy,
		PostedAt:    j.PostedAt,
	}
	for _, line := range j.Lines {
		view.Lines = append(view.Lines, journalLineView{ID: line.ID, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	return view
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	entries, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]journalView, 0, len(entries))
	for _, j := range entries {
		views = append(views, toView(j))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": pagination,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "journal id must be numeric")
		return
	}
	journal, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(journal))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "date must be YYYY-MM-DD")
		return
	}
	input := PostingInput{
		Date: date,
		Reference: internalShared.Reference{
			Kind: internalShared.ReferenceKind(req.ReferenceKind),
			ID:   req.ReferenceID,
		},
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}
	for _, line := range req.Lines {
		// Currency amounts persist at 2dp like every other posting path.
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     internalShared.RoundMoney(line.Debit),
			Credit:    internalShared.RoundMoney(line.Credit),
		})
	}
	journal, err := h.service.PostJournal(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(journal))
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "journal id must be numeric")
		return
	}
	var req struct {
		ActorID     int64  `json:"actor_id"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	input := ReverseInput{JournalID: id, ActorID: req.ActorID, Description: req.Description}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "date must be YYYY-MM-DD")
			return
		}
		input.Date = date
	}
	reversal, err := h.service.ReverseJournal(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(reversal))
}

func (h *Handler) rejectMutation(w http.ResponseWriter, r *http.Request) {
	httpx.Problem(w, http.StatusConflict, "Immutable", shared.ErrImmutableJournal.Error())
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrJournalNotFound), errors.Is(err, shared.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrMalformedLine),
		errors.Is(err, internalShared.ErrInvalidReference):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrInvalidAccount),
		errors.Is(err, shared.ErrSourceAlreadyLinked),
		errors.Is(err, shared.ErrImmutableJournal):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("journals request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
