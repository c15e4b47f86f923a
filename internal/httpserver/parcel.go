package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"milaf-storefront/internal/parcel"
)

// parcelQuery reads the destination and optional dimension overrides.
func parcelQuery(c *gin.Context) (parcel.Query, bool) {
	q := parcel.Query{
		ToPostcode:  strings.TrimSpace(c.Query("to_postcode")),
		ServiceCode: strings.TrimSpace(c.Query("service_code")),
	}
	dims := []struct {
		name string
		dst  *float64
	}{
		{"length", &q.Profile.LengthCM},
		{"width", &q.Profile.WidthCM},
		{"height", &q.Profile.HeightCM},
		{"weight", &q.Profile.WeightKG},
	}
	for _, d := range dims {
		raw := c.Query(d.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			badRequest(c, d.name, "must be a positive number")
			return q, false
		}
		*d.dst = v
	}
	return q, true
}

func (h *handlers) parcelServices(c *gin.Context) {
	q, ok := parcelQuery(c)
	if !ok {
		return
	}
	if q.ToPostcode == "" {
		badRequest(c, "to_postcode", "required")
		return
	}
	_, raw, err := h.deps.Parcel.Services(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *handlers) parcelCalc(c *gin.Context) {
	q, ok := parcelQuery(c)
	if !ok {
		return
	}
	if q.ToPostcode == "" {
		badRequest(c, "to_postcode", "required")
		return
	}
	if q.ServiceCode == "" {
		badRequest(c, "service_code", "required")
		return
	}
	_, raw, err := h.deps.Parcel.Calculate(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
