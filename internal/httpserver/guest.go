package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"milaf-storefront/internal/domain"
)

func guestIDFrom(c *gin.Context) string {
	return c.GetString(guestIDKey)
}

func (h *handlers) guestSession(c *gin.Context) {
	token, guestID, err := h.deps.Guests.Issue(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":     token,
		"guestId":   guestID,
		"expiresIn": h.deps.Guests.TTLSeconds(),
	})
}

func (h *handlers) guestCart(c *gin.Context) {
	items, err := h.deps.GuestCarts.List(c.Request.Context(), guestIDFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.AnonymousCartItem{}
	}
	var totalItems int
	var totalCents int64
	for _, it := range items {
		totalItems += it.Quantity
		totalCents += it.PriceCents * int64(it.Quantity)
	}
	c.JSON(http.StatusOK, gin.H{
		"items":           items,
		"totalItems":      totalItems,
		"totalPriceCents": totalCents,
	})
}

func (h *handlers) addGuestItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(c, "name", "required")
		return
	}
	if err := domain.CheckQuantity(req.Quantity); err != nil {
		writeError(c, h.logger, err)
		return
	}
	kind, err := domain.ParseUnitKind(req.UnitKind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	price, err := h.deps.Catalog.UnitPrice(ctx, req.Name, kind)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	item, err := h.deps.GuestCarts.Add(ctx, guestIDFrom(c), domain.AnonymousCartItem{
		Name:       req.Name,
		Quantity:   req.Quantity,
		UnitKind:   kind,
		PriceCents: price,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *handlers) removeGuestItem(c *gin.Context) {
	if err := h.deps.GuestCarts.Remove(c.Request.Context(), guestIDFrom(c), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
