package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"milaf-storefront/internal/domain"
)

type cartItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	UnitKind string `json:"unitKind"`
}

type cartResponse struct {
	Items   []domain.CartLineDetail `json:"items"`
	Summary *domain.CartSummary     `json:"summary"`
}

func (h *handlers) cartView(c *gin.Context, userID string) (*cartResponse, error) {
	ctx := c.Request.Context()
	items, err := h.deps.Carts.ListItemsWithCatalogDetails(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := h.deps.Carts.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CartLineDetail{}
	}
	return &cartResponse{Items: items, Summary: summary}, nil
}

func (h *handlers) getCart(c *gin.Context) {
	view, err := h.cartView(c, principalFrom(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	kind, err := domain.ParseUnitKind(req.UnitKind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	// the price is always taken from the catalog, never from the client
	price, err := h.deps.Catalog.UnitPrice(ctx, req.Name, kind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	summary, err := h.deps.Carts.AddItem(ctx, principalFrom(c).UserID, req.Name, req.Quantity, kind, price)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	kind, err := domain.ParseUnitKind(req.UnitKind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	summary, err := h.deps.Carts.UpdateQuantity(c.Request.Context(), principalFrom(c).UserID, c.Param("name"), kind, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	kind, err := domain.ParseUnitKind(c.Query("unitKind"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	summary, err := h.deps.Carts.RemoveItem(c.Request.Context(), principalFrom(c).UserID, c.Param("name"), kind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) clearCart(c *gin.Context) {
	summary, err := h.deps.Carts.Clear(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) mergeGuestCart(c *gin.Context) {
	guestID, err := guestFromHeader(c, h.deps.Guests)
	if err != nil {
		badRequest(c, anonymousTokenHeader, err.Error())
		return
	}
	userID := principalFrom(c).UserID
	res, err := h.deps.Carts.MergeAnonymousCart(c.Request.Context(), userID, guestID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	view, err := h.cartView(c, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merge": res, "cart": view})
}
