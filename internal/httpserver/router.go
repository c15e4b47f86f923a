package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"milaf-storefront/internal/domain"
	"milaf-storefront/internal/identity"
	"milaf-storefront/internal/parcel"
	"milaf-storefront/internal/postcode"
	cartsvc "milaf-storefront/internal/service/cart"
	"milaf-storefront/internal/service/checkout"
)

type ParcelAPI interface {
	Services(ctx context.Context, q parcel.Query) ([]parcel.Service, json.RawMessage, error)
	Calculate(ctx context.Context, q parcel.Query) (*parcel.Calculation, json.RawMessage, error)
}

type CheckoutService interface {
	CreatePaymentOrder(ctx context.Context, req checkout.CheckoutRequest) (*domain.PaymentOrderHandle, error)
	VerifyPayment(ctx context.Context, userID, orderID, paymentID, signature string) (*domain.Order, error)
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) error
}

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, name string) (*domain.Product, error)
	UnitPrice(ctx context.Context, name string, kind domain.UnitKind) (int64, error)
}

type CartService interface {
	AddItem(ctx context.Context, userID, name string, quantity int, kind domain.UnitKind, priceCents int64) (*domain.CartSummary, error)
	RemoveItem(ctx context.Context, userID, name string, kind domain.UnitKind) (*domain.CartSummary, error)
	UpdateQuantity(ctx context.Context, userID, name string, kind domain.UnitKind, quantity int) (*domain.CartSummary, error)
	ListItemsWithCatalogDetails(ctx context.Context, userID string) ([]domain.CartLineDetail, error)
	Clear(ctx context.Context, userID string) (*domain.CartSummary, error)
	Summary(ctx context.Context, userID string) (*domain.CartSummary, error)
	MergeAnonymousCart(ctx context.Context, userID, guestID string) (cartsvc.MergeResult, error)
}

type GuestSessions interface {
	Issue(ctx context.Context) (token, guestID string, err error)
	LookupByToken(ctx context.Context, token string) (string, error)
	TTLSeconds() int
}

type GuestCarts interface {
	Add(ctx context.Context, guestID string, item domain.AnonymousCartItem) (*domain.AnonymousCartItem, error)
	List(ctx context.Context, guestID string) ([]domain.AnonymousCartItem, error)
	Remove(ctx context.Context, guestID string, itemIDs ...string) error
}

type OrderService interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, trackingNumber string) (*domain.Order, error)
}

type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

type PostcodeLookup interface {
	Search(query string, limit int) []postcode.Entry
}

// Deps holds everything the router needs.
type Deps struct {
	Parcel     ParcelAPI
	Checkout   CheckoutService
	Catalog    CatalogService
	Carts      CartService
	Guests     GuestSessions
	GuestCarts GuestCarts
	Orders     OrderService
	Identity   TokenVerifier
	Postcodes  PostcodeLookup

	PaymentKeyID string
	CORSOrigins  []string
	AdminAPIKey  string
	RateLimitRPS float64
	RateBurst    int
}

func (d Deps) validate() error {
	switch {
	case d.Parcel == nil:
		return errors.New("httpserver: parcel client is required")
	case d.Checkout == nil:
		return errors.New("httpserver: checkout service is required")
	case d.Catalog == nil:
		return errors.New("httpserver: catalog service is required")
	case d.Carts == nil:
		return errors.New("httpserver: cart service is required")
	case d.Guests == nil || d.GuestCarts == nil:
		return errors.New("httpserver: guest session and cart store are required")
	case d.Orders == nil:
		return errors.New("httpserver: order service is required")
	case d.Identity == nil:
		return errors.New("httpserver: identity verifier is required")
	}
	return nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	h := &handlers{deps: deps, logger: logger.Named("http")}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(h.logger))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api")
	auth := requireUser(deps.Identity)

	parcelGroup := api.Group("/parcel")
	parcelGroup.GET("/services", h.parcelServices)
	parcelGroup.GET("/calc", h.parcelCalc)

	rps := deps.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	// gateway deliveries share a few source addresses and are authenticated by signature
	api.POST("/payment/webhook", h.paymentWebhook)
	payment := api.Group("/payment", rateLimit(newClientLimiter(rate.Limit(rps), deps.RateBurst)))
	payment.GET("/key", h.paymentKey)
	payment.POST("/create-order", auth, h.createOrder)
	payment.POST("/verify", auth, h.verifyPayment)

	catalog := api.Group("/catalog")
	catalog.GET("/products", h.listProducts)
	catalog.GET("/products/:name", h.getProduct)

	cart := api.Group("/cart", auth)
	cart.GET("", h.getCart)
	cart.DELETE("", h.clearCart)
	cart.POST("/items", h.addCartItem)
	cart.PATCH("/items/:name", h.updateCartItem)
	cart.DELETE("/items/:name", h.removeCartItem)
	cart.POST("/merge", h.mergeGuestCart)

	api.POST("/guest/session", h.guestSession)
	guest := api.Group("/guest/cart", requireGuest(deps.Guests))
	guest.GET("", h.guestCart)
	guest.POST("/items", h.addGuestItem)
	guest.DELETE("/items/:id", h.removeGuestItem)

	api.GET("/orders", auth, h.listOrders)
	api.PATCH("/admin/orders/:id/status", requireAdmin(deps.AdminAPIKey), h.updateOrderStatus)

	if deps.Postcodes != nil {
		api.GET("/postcodes", h.searchPostcodes)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", anonymousTokenHeader},
		MaxAge:       12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		// credentials cannot be combined with a wildcard origin
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
