package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
	"github.com/mridulsharma03/snapnet-server/service/user"
)

const maxWebhookBody = 65536

type Handler struct {
	db   *gorm.DB
	cfg  *config.Config
	auth *utils.Authenticator

	// createSession is session.New in production; tests stub it.
	createSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewHandler(db *gorm.DB, cfg *config.Config, auth *utils.Authenticator) *Handler {
	stripe.Key = cfg.StripeAPIKey
	return &Handler{db: db, cfg: cfg, auth: auth, createSession: session.New}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/payment/subscribe/", h.auth.Middleware(h.handleSubscribe)).Methods(http.MethodGet)
	router.HandleFunc("/payment/success/", h.handleSuccess).Methods(http.MethodGet)
	router.HandleFunc("/payment/cancel/", h.handleCancel).Methods(http.MethodGet)
	router.HandleFunc("/payment/webhook/checkout/success/", h.handleCheckoutWebhook).Methods(http.MethodPost)

	router.HandleFunc("/payment/subscription/", h.auth.Middleware(h.handleGetSubscription)).Methods(http.MethodGet)
	router.HandleFunc("/payment/transactions/", h.auth.RequireAdmin(h.handleListTransactions)).Methods(http.MethodGet)
}

// handleSubscribe opens a checkout session and records a processing
// transaction keyed by the session id.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	if utils.GetRole(r.Context()) == models.RoleAdmin {
		utils.WriteError(w, utils.Forbidden("Admin user can't perform this action!"))
		return
	}

	u, err := user.GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var existing models.Subscription
	if err := h.db.Where("user_id = ? AND is_cancelled = ?", u.ID, false).First(&existing).Error; err == nil {
		utils.WriteError(w, utils.BadRequest("Subscription already created!"))
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, err)
		return
	}

	interval := r.URL.Query().Get("interval")
	plan, err := PlanFor(interval)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var baseUser models.BaseUser
	if err := h.db.First(&baseUser, baseUserID).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(h.cfg.StripeProductName),
					},
					UnitAmount: stripe.Int64(plan.AmountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval:      stripe.String(plan.Interval),
						IntervalCount: stripe.Int64(1),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(h.cfg.StripeSuccessURL),
		CancelURL:     stripe.String(h.cfg.StripeCancelURL),
		CustomerEmail: stripe.String(baseUser.Email),
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(u.ID), 10))
	params.AddMetadata("interval", interval)

	sess, err := h.createSession(params)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	transaction := models.Transaction{
		PaymentID:   sess.ID,
		UserID:      u.ID,
		Amount:      float64(plan.AmountCents) / 100,
		ServiceType: models.ServiceSubscription,
		Status:      models.TransactionProcessing,
	}
	if err := h.db.Create(&transaction).Error; err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Checkout session created!", map[string]interface{}{
		"checkout_url": sess.URL,
	})
}

func (h *Handler) handleSuccess(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Payment successful! Your subscription will be activated shortly.", nil)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Payment cancelled!", nil)
}

// handleCheckoutWebhook verifies the processor signature, completes the
// matching transaction and activates the subscription.
func (h *Handler) handleCheckoutWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, utils.BadRequest("Could not read webhook body!"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.StripeWebhookSecret)
	if err != nil {
		utils.WriteError(w, utils.BadRequest("Invalid webhook signature!"))
		return
	}
	if event.Type != "checkout.session.completed" {
		utils.WriteSuccess(w, http.StatusOK, "Event ignored!", nil)
		return
	}

	var sess struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		utils.WriteError(w, utils.BadRequest("Malformed event payload!"))
		return
	}

	var subscription models.Subscription
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var transaction models.Transaction
		if err := tx.Where("payment_id = ?", sess.ID).First(&transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.BadRequest("Transaction not created!")
			}
			return err
		}
		if err := tx.Model(&transaction).Update("status", models.TransactionCompleted).Error; err != nil {
			return err
		}

		interval := sess.Metadata["interval"]
		if _, err := PlanFor(interval); err != nil {
			interval = models.IntervalDaily
		}
		subscription = models.Subscription{
			TransactionID: transaction.ID,
			UserID:        transaction.UserID,
			Interval:      interval,
		}
		return tx.Create(&subscription).Error
	})
	if err != nil {
		utils.WriteError(w, utils.FromDBError(err))
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Subscription activated!", subscription)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	baseUserID, err := utils.GetUserID(r.Context())
	if err != nil {
		utils.WriteError(w, utils.Unauthorized("Invalid Credentials!"))
		return
	}
	u, err := user.GetUserByBaseUserID(h.db, baseUserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var sub models.Subscription
	err = h.db.Preload("Transaction").
		Where("user_id = ? AND is_cancelled = ?", u.ID, false).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, utils.NotFound("No active subscription!"))
			return
		}
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Subscription fetched successfully!", sub)
}

// handleListTransactions is the admin view of checkout history, with
// optional user_id and status filters.
func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page := utils.ParsePage(r)
	pageSize := h.cfg.PageSize

	query := h.db.Model(&models.Transaction{})
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		id, err := strconv.ParseUint(userID, 10, 64)
		if err != nil {
			utils.WriteError(w, utils.BadRequest("Invalid user_id filter!"))
			return
		}
		query = query.Where("user_id = ?", id)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if status != models.TransactionProcessing && status != models.TransactionCompleted {
			utils.WriteError(w, utils.BadRequest("Invalid status filter!"))
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, err)
		return
	}

	var transactions []models.Transaction
	err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&transactions).Error
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Transactions fetched successfully!", map[string]interface{}{
		"items":      transactions,
		"pagination": utils.NewPaginationMeta(page, pageSize, total),
	})
}
